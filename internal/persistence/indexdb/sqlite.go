// Package indexdb keeps a queryable sqlite index next to the JSONL logs. The
// logs stay the source of truth; the index may drop writes under load.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/caterpillar-1/CShapeZ/internal/persistence/snapshot"
	"github.com/caterpillar-1/CShapeZ/internal/sim/tuning"
	"github.com/caterpillar-1/CShapeZ/internal/sim/world"
)

const SchemaVersion = "1"

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropAudit    atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
	reqFlush
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	audit    world.AuditEntry
	snapshot snapshotRow
	done     chan struct{}
}

type snapshotRow struct {
	Tick    uint64
	Path    string
	SHA256  string
	Size    int
	Devices int
	Stalled int
	Money   int64
}

// Stats reports queue pressure for the admin endpoints.
type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropAuditTotal    uint64 `json:"drop_audit_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{db: db, ch: make(chan req, queue)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS config (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			fired INTEGER NOT NULL,
			deliveries INTEGER NOT NULL,
			matched INTEGER NOT NULL,
			results INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			action TEXT NOT NULL,
			kind TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			rotation INTEGER NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_action_tick ON audits(action, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_pos_tick ON audits(x, y, tick);`,
		`CREATE TABLE IF NOT EXISTS goal_events (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			problem_set INTEGER NOT NULL,
			task INTEGER NOT NULL,
			credit INTEGER NOT NULL,
			money INTEGER NOT NULL,
			device TEXT,
			ratio REAL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			sha256 TEXT NOT NULL,
			size INTEGER NOT NULL,
			devices INTEGER NOT NULL,
			stalled INTEGER NOT NULL,
			money INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, SchemaVersion)
	return err
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// DB exposes the handle for read-only queries.
func (s *SQLiteIndex) DB() *sql.DB { return s.db }

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropAuditTotal:    s.dropAudit.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, h snapshot.Header) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:    h.Tick,
		Path:    path,
		SHA256:  h.SHA256,
		Size:    h.Size,
		Devices: h.Devices,
		Stalled: h.Stalled,
		Money:   h.Money,
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// Flush blocks until every request queued before it is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpsertTuning records the configuration the world runs with.
func (s *SQLiteIndex) UpsertTuning(t tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	_, err = s.db.Exec(`INSERT OR REPLACE INTO config(name,digest,json,updated_at) VALUES('tuning',?,?,?)`,
		hex.EncodeToString(sum[:]), string(b), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,fired,deliveries,matched,results,raw_json) VALUES(?,?,?,?,?,?)`)
	insertGoal, _ := s.db.Prepare(`INSERT OR REPLACE INTO goal_events(tick,seq,kind,problem_set,task,credit,money,device,ratio) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(tick,seq,action,kind,x,y,rotation,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(tick,path,sha256,size,devices,stalled,money) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertGoal, insertAudit, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 1000
		commitMaxWait = time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil || tx == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		return true
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			raw, _ := json.Marshal(e)
			if !exec(insertTick, int64(e.Tick), e.Fired, e.Deliveries, e.Matched, len(e.Results), string(raw)) {
				continue
			}
			for i, ev := range e.Goal {
				if !exec(insertGoal, int64(e.Tick), i, string(ev.Kind), ev.ProblemSet, ev.Task, ev.Credit, ev.Money, ev.Device, ev.Ratio) {
					break
				}
			}

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			exec(insertAudit, int64(a.Tick), seq, a.Action, a.Kind, a.Pos[0], a.Pos[1], a.Rotation, a.Reason, string(raw))

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, int64(sn.Tick), sn.Path, sn.SHA256, sn.Size, sn.Devices, sn.Stalled, sn.Money)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
