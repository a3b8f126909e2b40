package tuning

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/caterpillar-1/CShapeZ/internal/sim/device"
)

func TestLoadRepoConfig(t *testing.T) {
	tu, err := Load(filepath.Join("..", "..", "..", "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.TickRateHz != 60 || tu.GridW != 32 || tu.CenterSize != 4 {
		t.Fatalf("tuning=%+v", tu)
	}
	r, err := tu.InitialRatios()
	if err != nil {
		t.Fatalf("InitialRatios: %v", err)
	}
	tm, err := tu.Timing(&r)
	if err != nil {
		t.Fatalf("Timing: %v", err)
	}
	if tm.Period(device.KindMiner) != 120 || tm.Period(device.KindBelt) != 60 {
		t.Fatalf("periods miner=%d belt=%d", tm.Period(device.KindMiner), tm.Period(device.KindBelt))
	}
}

func TestParseOverlaysDefaults(t *testing.T) {
	tu, err := Parse([]byte("grid_w: 64\nratios:\n  BELT: 2.5\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tu.GridW != 64 || tu.GridH != 32 || tu.TickRateHz != 60 {
		t.Fatalf("tuning=%+v", tu)
	}
	r, _ := tu.InitialRatios()
	if r.Get(device.KindBelt) != 2.5 || r.Get(device.KindMiner) != 1.0 {
		t.Fatalf("ratios=%v", r)
	}

	empty, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(empty): %v", err)
	}
	if empty.GridW != Defaults().GridW {
		t.Fatalf("empty document must yield defaults")
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field":  "grid_depth: 3\n",
		"ratio too high": "ratios:\n  BELT: 9\n",
		"unknown kind":   "base_rates:\n  SPLITTER: 1\n",
		"negative rate":  "base_rates:\n  MINER: -1\n",
		"zero tick rate": "tick_rate_hz: 0\n",
		"center too big": "grid_w: 8\ngrid_h: 8\ncenter_size: 9\n",
		"wrong type":     "grid_w: wide\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: accepted", name)
		} else if name != "wrong type" && !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: err=%v want ErrInvalid", name, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v", err)
	}
}
