package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caterpillar-1/CShapeZ/internal/persistence/indexdb"
	"github.com/caterpillar-1/CShapeZ/internal/persistence/snapshot"
	"github.com/caterpillar-1/CShapeZ/internal/sim/tuning"
	"github.com/caterpillar-1/CShapeZ/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	world.AuditLogger
	Close() error
	UpsertTuning(t tuning.Tuning) error
	RecordSnapshot(path string, h snapshot.Header)
	Stats() indexdb.Stats
}

// IndexPath is where a world's sqlite index lives.
func IndexPath(worldDir string) string { return filepath.Join(worldDir, "index", "world.sqlite") }

// openRuntimeIndex returns a nil interface (not a typed nil) when indexing is
// off, so callers can compare against nil.
func openRuntimeIndex(worldDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("CSZ_INDEX_BACKEND")))
	switch backend {
	case "", "sqlite":
		idx, err := indexdb.OpenSQLite(IndexPath(worldDir))
		if err != nil {
			return nil, err
		}
		return idx, nil
	case "none", "off", "disabled":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported CSZ_INDEX_BACKEND: %s", backend)
	}
}

type multiTickLogger struct {
	a world.TickLogger
	b world.TickLogger
}

func (m multiTickLogger) WriteTick(entry world.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
