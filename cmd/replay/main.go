package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	persistlog "github.com/caterpillar-1/CShapeZ/internal/persistence/log"
	"github.com/caterpillar-1/CShapeZ/internal/persistence/snapshot"
	"github.com/caterpillar-1/CShapeZ/internal/sim/io/savecodec"
	"github.com/caterpillar-1/CShapeZ/internal/sim/tuning"
	"github.com/caterpillar-1/CShapeZ/internal/sim/world"
)

// replay re-runs the commands recorded in a world's tick log and checks that
// every tick produces the same firings, deliveries and results. Start from
// the snapshot the server resumed from, or from a fresh world when the log
// begins at tick 0; periodic snapshots taken mid-run drop items in flight and
// will not replay exactly.
func main() {
	var (
		dataDir    = flag.String("data", "./data", "runtime data directory")
		worldID    = flag.String("world", "world_1", "world id")
		snapPath   = flag.String("snapshot", "", "snapshot to start from (empty: fresh world from tuning)")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning used by the recorded run")
		seed       = flag.Int64("seed", 0, "terrain seed override (must match the recorded run)")
		toTick     = flag.Int64("to_tick", -1, "stop at tick (inclusive, -1: replay everything)")
	)
	flag.Parse()

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}
	if *seed != 0 {
		tune.Seed = *seed
	}
	cfg, err := world.ConfigFromTuning(*worldID, tune)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	var w *world.World
	if *snapPath != "" {
		h, payload, err := snapshot.Read(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		st, err := savecodec.Unmarshal(payload)
		if err != nil {
			fmt.Fprintln(os.Stderr, "decode snapshot:", err)
			os.Exit(1)
		}
		w, err = world.FromSave(cfg, st, h.Tick+1)
		if err != nil {
			fmt.Fprintln(os.Stderr, "world:", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot v%d world=%s tick=%d devices=%d money=%d\n", h.Version, h.WorldID, h.Tick, h.Devices, h.Money)
	} else {
		w, err = world.New(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, "world:", err)
			os.Exit(1)
		}
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	entries, err := readTickLog(persistlog.TickDir(worldDir))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read tick log:", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no tick log entries under", persistlog.TickDir(worldDir))
		os.Exit(1)
	}

	start := w.CurrentTick()
	checked, err := replay(w, entries, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d entries ticks=%d..%d\n", checked, start, w.CurrentTick())
}

func readTickLog(dir string) ([]world.TickLogEntry, error) {
	files, err := persistlog.Files(dir, persistlog.TickPrefix)
	if err != nil {
		return nil, err
	}
	var out []world.TickLogEntry
	for _, p := range files {
		err := persistlog.ReadJSONL(p, func(line []byte) error {
			var e world.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(p), err)
			}
			out = append(out, e)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	return out, nil
}

type captureLogger struct{ got []world.TickLogEntry }

func (c *captureLogger) WriteTick(e world.TickLogEntry) error {
	c.got = append(c.got, e)
	return nil
}

// replay steps w through entries. Ticks without an entry run with no
// commands and must stay quiet.
func replay(w *world.World, entries []world.TickLogEntry, toTick int64) (int, error) {
	capture := &captureLogger{}
	w.SetTickLogger(capture)
	defer w.SetTickLogger(nil)

	checked := 0
	for _, want := range entries {
		if want.Tick < w.CurrentTick() {
			continue
		}
		if toTick >= 0 && want.Tick > uint64(toTick) {
			break
		}
		for w.CurrentTick() < want.Tick {
			capture.got = capture.got[:0]
			tick, _ := w.StepOnce(nil)
			if len(capture.got) > 0 {
				return checked, fmt.Errorf("tick %d: activity not in the log (deliveries=%d)", tick, capture.got[0].Deliveries)
			}
		}
		capture.got = capture.got[:0]
		tick, _ := w.StepOnce(want.Commands)
		if len(capture.got) != 1 {
			return checked, fmt.Errorf("tick %d: logged activity did not happen", tick)
		}
		if err := compareEntry(want, capture.got[0]); err != nil {
			return checked, fmt.Errorf("tick %d: %w", tick, err)
		}
		checked++
	}
	return checked, nil
}

func compareEntry(want, got world.TickLogEntry) error {
	if want.Fired != got.Fired || want.Deliveries != got.Deliveries || want.Matched != got.Matched {
		return fmt.Errorf("fired/deliveries/matched got=%d/%d/%d want=%d/%d/%d",
			got.Fired, got.Deliveries, got.Matched, want.Fired, want.Deliveries, want.Matched)
	}
	if len(want.Results) != len(got.Results) {
		return fmt.Errorf("results got=%d want=%d", len(got.Results), len(want.Results))
	}
	for i := range want.Results {
		a, b := want.Results[i], got.Results[i]
		if a.ID != b.ID || a.OK != b.OK || a.Code != b.Code {
			return fmt.Errorf("result %d (%s) got ok=%v code=%s want ok=%v code=%s", i, a.ID, b.OK, b.Code, a.OK, a.Code)
		}
	}
	if len(want.Goal) != len(got.Goal) {
		return fmt.Errorf("goal events got=%d want=%d", len(got.Goal), len(want.Goal))
	}
	for i := range want.Goal {
		if want.Goal[i] != got.Goal[i] {
			return fmt.Errorf("goal event %d got=%+v want=%+v", i, got.Goal[i], want.Goal[i])
		}
	}
	return nil
}
