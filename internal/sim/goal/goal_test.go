package goal

import (
	"errors"
	"testing"

	"github.com/caterpillar-1/CShapeZ/internal/sim/device"
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/item"
)

func deliverN(t *testing.T, tr *Tracker, m item.Mine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if !tr.Deliver(m) {
			t.Fatalf("delivery %d of %v not counted", i, m)
		}
	}
}

func TestDeliverIgnoresOrientationAndOtherItems(t *testing.T) {
	tr := New()
	want := Levels[0][0].Mine()
	rotated := want
	rotated.Orientation = geom.R180
	if !tr.Deliver(rotated) {
		t.Fatalf("orientation must not matter")
	}
	if tr.Deliver(item.TraitCarrier{Trait: item.Black}) {
		t.Fatalf("trait carrier counted")
	}
	if tr.Deliver(want.WithTrait(item.Red)) {
		t.Fatalf("wrong trait counted")
	}
	if tr.Deliver(nil) {
		t.Fatalf("nil counted")
	}
	if got := tr.Status().Received; got != 1 {
		t.Fatalf("received=%d want 1", got)
	}
}

func TestTaskCompletionCreditsMoney(t *testing.T) {
	tr := New()
	deliverN(t, tr, Levels[0][0].Mine(), Levels[0][0].Required)
	st := tr.Status()
	if st.Task != 1 || st.Received != 0 {
		t.Fatalf("status=%+v", st)
	}
	if want := int64(20 * RewardPerItem); st.Money != want {
		t.Fatalf("money=%d want %d", st.Money, want)
	}
	ev := tr.DrainEvents()
	if len(ev) != 1 || ev[0].Kind != EventTaskDone || ev[0].Credit != st.Money {
		t.Fatalf("events=%+v", ev)
	}
	if len(tr.DrainEvents()) != 0 {
		t.Fatalf("events must drain")
	}
}

func TestProblemSetsWrapAndGrantEnhance(t *testing.T) {
	tr := New()
	for set := range Levels {
		for _, tg := range Levels[set] {
			deliverN(t, tr, tg.Mine(), tg.Required)
		}
	}
	st := tr.Status()
	if st.ProblemSet != 0 || st.Task != 0 {
		t.Fatalf("tracker should wrap to the first set, got %+v", st)
	}
	if st.Enhance != len(Levels) {
		t.Fatalf("enhance=%d want %d", st.Enhance, len(Levels))
	}
}

func TestUpgrades(t *testing.T) {
	tr := New()
	ratios := device.DefaultRatios()
	if err := tr.UpgradeDevice(device.KindBelt, &ratios); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err=%v", err)
	}
	if ratios.Get(device.KindBelt) != 1.0 {
		t.Fatalf("failed upgrade changed the ratio")
	}

	tr.money = 5000
	if err := tr.UpgradeDevice(device.KindBelt, &ratios); err != nil {
		t.Fatalf("UpgradeDevice: %v", err)
	}
	if ratios.Get(device.KindBelt) != 1.1 || tr.Money() != 1000 {
		t.Fatalf("ratio=%v money=%d", ratios.Get(device.KindBelt), tr.Money())
	}
	if err := tr.UpgradeMoneyRatio(); err != nil {
		t.Fatalf("UpgradeMoneyRatio: %v", err)
	}
	if tr.Status().MoneyRatio != 1.1 || tr.Money() != 0 {
		t.Fatalf("status=%+v", tr.Status())
	}

	_ = ratios.Set(device.KindMiner, device.MaxRatio)
	tr.money = 10000
	if err := tr.UpgradeDevice(device.KindMiner, &ratios); !errors.Is(err, ErrAtCap) {
		t.Fatalf("err=%v", err)
	}
	if tr.Money() != 10000 {
		t.Fatalf("capped upgrade spent money")
	}
}

func TestEnhanceNeedsPoints(t *testing.T) {
	tr := New()
	ratios := device.DefaultRatios()
	if err := tr.Enhance(device.KindCutter, &ratios); !errors.Is(err, ErrNoEnhance) {
		t.Fatalf("err=%v", err)
	}
	tr.enhance = 1
	if err := tr.Enhance(device.KindCutter, &ratios); err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if ratios.Get(device.KindCutter) != 1.5 || tr.Status().Enhance != 0 {
		t.Fatalf("ratio=%v enhance=%d", ratios.Get(device.KindCutter), tr.Status().Enhance)
	}
}

func TestRestoreValidates(t *testing.T) {
	tr := New()
	good := State{ProblemSet: 1, Task: 2, Received: 5, Money: 42, MoneyRatio: 1.3, Enhance: 1}
	if err := tr.Restore(good); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if tr.Snapshot() != good {
		t.Fatalf("snapshot=%+v", tr.Snapshot())
	}
	bad := []State{
		{ProblemSet: 3, MoneyRatio: 1},
		{Task: 3, MoneyRatio: 1},
		{Received: 20, MoneyRatio: 1},
		{MoneyRatio: 0},
		{MoneyRatio: 1, Enhance: -1},
	}
	for _, s := range bad {
		if err := tr.Restore(s); !errors.Is(err, ErrBadState) {
			t.Fatalf("Restore(%+v) err=%v", s, err)
		}
	}
	if tr.Snapshot() != good {
		t.Fatalf("rejected restore modified the tracker")
	}
}
