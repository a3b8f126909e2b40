package log

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/caterpillar-1/CShapeZ/internal/sim/world"
)

func TestJSONLZstdWriterRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "ticks")
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.SetClock(func() time.Time { return now })

	if err := w.Write(world.TickLogEntry{Tick: 1, Fired: 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(world.TickLogEntry{Tick: 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(world.TickLogEntry{Tick: 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if w.Lines() != 3 {
		t.Fatalf("lines=%d", w.Lines())
	}

	files, err := Files(dir, "ticks")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	want := []string{
		filepath.Join(dir, "ticks-2026-03-01-10.jsonl.zst"),
		filepath.Join(dir, "ticks-2026-03-01-11.jsonl.zst"),
	}
	if len(files) != 2 || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("files=%v", files)
	}

	var ticks []uint64
	for _, p := range files {
		err := ReadJSONL(p, func(line []byte) error {
			var e world.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			ticks = append(ticks, e.Tick)
			return nil
		})
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
	}
	if len(ticks) != 3 || ticks[0] != 1 || ticks[2] != 3 {
		t.Fatalf("ticks=%v", ticks)
	}
}

func TestAuditLoggerAppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		l := NewAuditLogger(dir)
		l.w.SetClock(func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) })
		if err := l.WriteAudit(world.AuditEntry{Tick: uint64(i), Action: "PLACE", Kind: "BELT", Pos: [2]int{i, 0}}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	got, err := ReadAudits(dir)
	if err != nil {
		t.Fatalf("ReadAudits: %v", err)
	}
	if len(got) != 2 || got[0].Tick != 0 || got[1].Pos != [2]int{1, 0} || got[1].Kind != "BELT" {
		t.Fatalf("audits=%+v", got)
	}
}

func TestFilesMissingDir(t *testing.T) {
	files, err := Files(filepath.Join(t.TempDir(), "nope"), "audit")
	if err != nil || files != nil {
		t.Fatalf("files=%v err=%v", files, err)
	}
}
