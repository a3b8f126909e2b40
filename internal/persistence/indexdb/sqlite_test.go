package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/caterpillar-1/CShapeZ/internal/observerproto"
	"github.com/caterpillar-1/CShapeZ/internal/persistence/snapshot"
	"github.com/caterpillar-1/CShapeZ/internal/sim/goal"
	"github.com/caterpillar-1/CShapeZ/internal/sim/tuning"
	"github.com/caterpillar-1/CShapeZ/internal/sim/world"
)

func TestSQLiteIndex_WritesAndQueries(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index", "world.sqlite")
	idx, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	_ = idx.WriteTick(world.TickLogEntry{
		Tick: 300, Fired: 4, Deliveries: 1, Matched: 1,
		Results: []observerproto.ResultMsg{{ID: "a", OK: true}},
		Goal:    []goal.Event{{Kind: goal.EventTaskDone, ProblemSet: 0, Task: 0, Credit: 200, Money: 200}},
	})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 300, Action: "PLACE", Kind: "BELT", Pos: [2]int{3, 4}, Rotation: 1})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 300, Action: "STALL", Kind: "CUTTER", Pos: [2]int{5, 5}, Reason: "TYPE_MISMATCH"})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 301, Action: "PLACE", Kind: "TRASH"})
	idx.RecordSnapshot("/data/snapshots/300.snap.zst", snapshot.Header{Tick: 300, SHA256: "abc", Size: 10, Devices: 4, Money: 200})
	if err := idx.UpsertTuning(tuning.Defaults()); err != nil {
		t.Fatalf("tuning: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	snaps, err := Snapshots(ctx, idx.DB(), 10)
	if err != nil || len(snaps) != 1 || snaps[0].Tick != 300 || snaps[0].Devices != 4 || snaps[0].SHA256 != "abc" {
		t.Fatalf("snapshots=%+v err=%v", snaps, err)
	}
	places, err := Audits(ctx, idx.DB(), "PLACE", 10)
	if err != nil || len(places) != 2 || places[0].Tick != 301 || places[1].Pos != [2]int{3, 4} {
		t.Fatalf("audits=%+v err=%v", places, err)
	}
	all, err := Audits(ctx, idx.DB(), "", 10)
	if err != nil || len(all) != 3 {
		t.Fatalf("all audits=%+v err=%v", all, err)
	}
	stall := all[1]
	if stall.Action != "STALL" || stall.Seq != 1 || stall.Reason != "TYPE_MISMATCH" {
		t.Fatalf("stall=%+v", stall)
	}
	events, err := GoalEvents(ctx, idx.DB(), 10)
	if err != nil || len(events) != 1 || events[0].Credit != 200 || events[0].Kind != string(goal.EventTaskDone) {
		t.Fatalf("goal events=%+v err=%v", events, err)
	}

	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	var fired, results int
	if err := db.QueryRow(`SELECT fired,results FROM ticks WHERE tick=300`).Scan(&fired, &results); err != nil {
		t.Fatalf("tick row: %v", err)
	}
	if fired != 4 || results != 1 {
		t.Fatalf("fired=%d results=%d", fired, results)
	}
	var version, digest string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key='schema_version'`).Scan(&version); err != nil || version != SchemaVersion {
		t.Fatalf("schema_version=%q err=%v", version, err)
	}
	if err := db.QueryRow(`SELECT digest FROM config WHERE name='tuning'`).Scan(&digest); err != nil || len(digest) != 64 {
		t.Fatalf("tuning digest=%q err=%v", digest, err)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	_ = s.WriteAudit(world.AuditEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.Header{})

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropAuditTotal != 1 || st.DropSnapshotTotal != 1 {
		t.Fatalf("drops=%+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_WritesAfterCloseAreIgnored(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "world.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := idx.WriteTick(world.TickLogEntry{Tick: 1}); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	if err := idx.Flush(context.Background()); err != nil {
		t.Fatalf("flush after close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
