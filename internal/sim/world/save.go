package world

import (
	"context"
	"errors"

	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/io/savecodec"
)

type adminSnapshotReq struct {
	Resp chan adminSnapshotResp
}

type adminSnapshotResp struct {
	Tick uint64
	Err  string
}

// SaveState captures the network in its persisted form. Items in flight are
// not part of it.
func (w *World) SaveState() *savecodec.State {
	return &savecodec.State{Grid: w.grid, Ratios: w.ratios, Goal: w.goal.Snapshot()}
}

// ExportSnapshot encodes the current network. Call it from the loop
// goroutine or while the world is stopped.
func (w *World) ExportSnapshot(tick uint64) (Snapshot, error) {
	b, err := savecodec.Marshal(w.SaveState())
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{WorldID: w.cfg.ID, Tick: tick, Payload: b, Summary: w.Summary()}, nil
}

func (w *World) enqueueSnapshot(tick uint64) string {
	if w.snapshotSink == nil {
		return "snapshot sink not configured"
	}
	snap, err := w.ExportSnapshot(tick)
	if err != nil {
		return err.Error()
	}
	select {
	case w.snapshotSink <- snap:
		return ""
	default:
		w.auditEvent(tick, "SNAPSHOT_DROPPED", "", geom.Pos{}, 0, "BACKPRESSURE", nil)
		return "snapshot sink backpressure"
	}
}

// RequestSnapshot asks the world loop goroutine to enqueue a snapshot.
// It is safe to call from other goroutines (e.g. HTTP handlers).
func (w *World) RequestSnapshot(ctx context.Context) (tick uint64, err error) {
	if w == nil || w.admin == nil {
		return 0, errors.New("admin snapshot not available")
	}
	resp := make(chan adminSnapshotResp, 1)
	select {
	case w.admin <- adminSnapshotReq{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Tick, errors.New(r.Err)
		}
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *World) handleAdminSnapshotRequests(reqs []adminSnapshotReq) {
	if len(reqs) == 0 {
		return
	}
	cur := w.tick.Load()
	snapTick := uint64(0)
	if cur > 0 {
		snapTick = cur - 1
	}
	resp := adminSnapshotResp{Tick: snapTick, Err: w.enqueueSnapshot(snapTick)}
	for _, r := range reqs {
		if r.Resp == nil {
			continue
		}
		select {
		case r.Resp <- resp:
		default:
			// Client timed out; don't block the sim loop.
		}
	}
}
