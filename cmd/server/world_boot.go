package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/caterpillar-1/CShapeZ/internal/persistence/snapshot"
	"github.com/caterpillar-1/CShapeZ/internal/sim/io/savecodec"
	"github.com/caterpillar-1/CShapeZ/internal/sim/tuning"
	"github.com/caterpillar-1/CShapeZ/internal/sim/world"
)

// openWorld resumes from snapPath, or from the newest snapshot in worldDir
// when loadLatest is set, and otherwise builds a fresh world. It returns the
// snapshot path it resumed from, if any.
func openWorld(worldID, worldDir, snapPath string, loadLatest bool, tune tuning.Tuning) (*world.World, string, error) {
	cfg, err := world.ConfigFromTuning(worldID, tune)
	if err != nil {
		return nil, "", err
	}
	if snapPath == "" && loadLatest {
		snapPath = snapshot.Latest(worldDir)
	}
	if snapPath == "" {
		w, err := world.New(cfg)
		return w, "", err
	}

	h, payload, err := snapshot.Read(snapPath)
	if err != nil {
		return nil, "", fmt.Errorf("read snapshot: %w", err)
	}
	if h.WorldID != "" && h.WorldID != worldID {
		return nil, "", fmt.Errorf("snapshot world id mismatch: flag=%s snap=%s", worldID, h.WorldID)
	}
	st, err := savecodec.Unmarshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode snapshot: %w", err)
	}
	w, err := world.FromSave(cfg, st, h.Tick+1)
	if err != nil {
		return nil, "", err
	}
	return w, snapPath, nil
}

func persistSnapshot(worldDir string, snap world.Snapshot, idx runtimeIndex) (string, error) {
	path := snapshot.Path(worldDir, snap.Tick)
	h, err := snapshot.Write(path, snapshot.Header{
		WorldID: snap.WorldID,
		Tick:    snap.Tick,
		Devices: snap.Summary.Devices,
		Stalled: snap.Summary.Stalled,
		Money:   snap.Summary.Money,
	}, snap.Payload)
	if err != nil {
		return "", err
	}
	if idx != nil {
		idx.RecordSnapshot(path, h)
	}
	return path, nil
}

func pruneSnapshots(worldDir string, keep int, logger *log.Logger) {
	removed, err := snapshot.Prune(worldDir, keep)
	if err != nil {
		logger.Printf("prune snapshots: %v", err)
		return
	}
	if len(removed) > 0 {
		logger.Printf("pruned %d snapshot(s)", len(removed))
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
