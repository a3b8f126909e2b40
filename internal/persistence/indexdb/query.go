package indexdb

import (
	"context"
	"database/sql"
)

type SnapshotRecord struct {
	Tick    uint64 `json:"tick"`
	Path    string `json:"path"`
	SHA256  string `json:"sha256"`
	Size    int    `json:"size"`
	Devices int    `json:"devices"`
	Stalled int    `json:"stalled"`
	Money   int64  `json:"money"`
}

type AuditRecord struct {
	Tick     uint64 `json:"tick"`
	Seq      int    `json:"seq"`
	Action   string `json:"action"`
	Kind     string `json:"kind"`
	Pos      [2]int `json:"pos"`
	Rotation int    `json:"rotation"`
	Reason   string `json:"reason,omitempty"`
}

type GoalRecord struct {
	Tick       uint64  `json:"tick"`
	Kind       string  `json:"kind"`
	ProblemSet int     `json:"problem_set"`
	Task       int     `json:"task"`
	Credit     int64   `json:"credit"`
	Money      int64   `json:"money"`
	Device     string  `json:"device,omitempty"`
	Ratio      float64 `json:"ratio,omitempty"`
}

// Snapshots lists recorded snapshots, newest first.
func Snapshots(ctx context.Context, db *sql.DB, limit int) ([]SnapshotRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `SELECT tick,path,sha256,size,devices,stalled,money FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SnapshotRecord
	for rows.Next() {
		var r SnapshotRecord
		var tick int64
		if err := rows.Scan(&tick, &r.Path, &r.SHA256, &r.Size, &r.Devices, &r.Stalled, &r.Money); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Audits lists audit rows, newest first. An empty action matches all.
func Audits(ctx context.Context, db *sql.DB, action string, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `SELECT tick,seq,action,kind,x,y,rotation,COALESCE(reason,'') FROM audits
		WHERE (?='' OR action=?) ORDER BY tick DESC, seq DESC LIMIT ?`, action, action, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditRecord
	for rows.Next() {
		var r AuditRecord
		var tick int64
		if err := rows.Scan(&tick, &r.Seq, &r.Action, &r.Kind, &r.Pos[0], &r.Pos[1], &r.Rotation, &r.Reason); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GoalEvents lists goal progress events in tick order.
func GoalEvents(ctx context.Context, db *sql.DB, limit int) ([]GoalRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `SELECT tick,kind,problem_set,task,credit,money,COALESCE(device,''),COALESCE(ratio,0) FROM goal_events
		ORDER BY tick, seq LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []GoalRecord
	for rows.Next() {
		var r GoalRecord
		var tick int64
		if err := rows.Scan(&tick, &r.Kind, &r.ProblemSet, &r.Task, &r.Credit, &r.Money, &r.Device, &r.Ratio); err != nil {
			return nil, err
		}
		r.Tick = uint64(tick)
		out = append(out, r)
	}
	return out, rows.Err()
}
