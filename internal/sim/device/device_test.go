package device

import (
	"errors"
	"testing"

	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/item"
	"github.com/caterpillar-1/CShapeZ/internal/sim/port"
)

type fakeEnv struct {
	ground    map[geom.Pos]item.Resource
	delivered []item.Item
}

func (e *fakeEnv) Ground(p geom.Pos) item.Resource { return e.ground[p] }
func (e *fakeEnv) Deliver(it item.Item)            { e.delivered = append(e.delivered, it) }

// feed links a fresh output to in and returns it.
func feed(t *testing.T, in *port.Input) *port.Output {
	t.Helper()
	src := port.NewOutput()
	if !port.Link(src, in) {
		t.Fatalf("link failed")
	}
	return src
}

// drain links a fresh input to out and returns it.
func drain(t *testing.T, out *port.Output) *port.Input {
	t.Helper()
	dst := port.NewInput()
	if !port.Link(out, dst) {
		t.Fatalf("link failed")
	}
	return dst
}

var fullBlackSquare = item.Mine{Kind: item.Square, Extent: item.Full, Trait: item.Black}

func TestMinerProducesFromGround(t *testing.T) {
	m := NewMiner()
	m.SetPlacement(geom.Pos{X: 3, Y: 4}, geom.R0)
	env := &fakeEnv{ground: map[geom.Pos]item.Resource{
		{X: 3, Y: 4}: item.MineResource{Kind: item.Square, Trait: item.Black},
	}}
	Fire(m, env)
	got, ok := m.Out().Peek().(item.Mine)
	if !ok || !got.Same(fullBlackSquare) {
		t.Fatalf("miner output=%v", m.Out().Peek())
	}
	Fire(m, env)
	if m.Mined() != 1 {
		t.Fatalf("miner must not overwrite its occupied port, mined=%d", m.Mined())
	}
}

func TestMinerWithoutGroundIdles(t *testing.T) {
	m := NewMiner()
	Fire(m, &fakeEnv{})
	if m.Out().Peek() != nil || m.Mined() != 0 {
		t.Fatalf("miner on empty ground produced %v", m.Out().Peek())
	}
}

func straightPath(n int) []geom.Offset {
	p := make([]geom.Offset, n)
	for i := range p {
		p[i] = geom.Offset{X: i}
	}
	return p
}

func TestBeltConservation(t *testing.T) {
	b, err := NewBelt(straightPath(3), geom.R0, geom.R0)
	if err != nil {
		t.Fatalf("NewBelt: %v", err)
	}
	src := feed(t, b.In())
	accepted := 0
	for i := 0; i < 20; i++ {
		if src.Ready() {
			src.Send(fullBlackSquare)
		}
		before := src.Ready()
		Fire(b, nil)
		if !before && src.Ready() {
			accepted++
		}
		if r := b.Resident(); r > 3 || r > accepted {
			t.Fatalf("tick %d: resident=%d accepted=%d", i, r, accepted)
		}
	}
	if b.Resident() != 3 {
		t.Fatalf("blocked belt should fill up, resident=%d", b.Resident())
	}
	if b.Out().Peek() == nil {
		t.Fatalf("output buffer must hold the head item")
	}
}

func TestBeltMovesOneCellPerFire(t *testing.T) {
	b, _ := NewBelt(straightPath(3), geom.R0, geom.R0)
	src := feed(t, b.In())
	dst := drain(t, b.Out())
	src.Send(fullBlackSquare)

	Fire(b, nil) // pulled into slot 0
	if dst.Ready() {
		t.Fatalf("item reached the output too early")
	}
	Fire(b, nil) // slot 1
	if dst.Ready() {
		t.Fatalf("item reached the output too early")
	}
	Fire(b, nil) // output buffer
	if !dst.Ready() {
		t.Fatalf("item should be at the output after three fires, slots=%v", b.Slots())
	}
}

func TestSingleCellBeltForwards(t *testing.T) {
	b, err := NewBelt([]geom.Offset{{}}, geom.R0, geom.R0)
	if err != nil {
		t.Fatalf("NewBelt: %v", err)
	}
	src := feed(t, b.In())
	src.Send(item.TraitCarrier{Trait: item.Red})
	Fire(b, nil)
	if _, ok := b.Out().Peek().(item.TraitCarrier); !ok {
		t.Fatalf("single-cell belt must forward directly")
	}
	src.Send(item.TraitCarrier{Trait: item.Blue})
	Fire(b, nil)
	if src.Ready() {
		t.Fatalf("belt must not pull while its output is occupied")
	}
}

func TestBeltRejectsBadPaths(t *testing.T) {
	cases := map[string][]geom.Offset{
		"gap":      {{X: 0}, {X: 2}},
		"diagonal": {{X: 0}, {X: 1, Y: 1}},
		"repeat":   {{X: 0}, {X: 1}, {X: 0}},
		"offbase":  {{X: 1}, {X: 2}},
		"empty":    nil,
	}
	for name, path := range cases {
		if _, err := NewBelt(path, geom.R0, geom.R0); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("%s: err=%v, want ErrInvalidPath", name, err)
		}
	}
	if _, err := NewBelt([]geom.Offset{{}}, geom.R0, geom.R180); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("ports sharing a side must be rejected, err=%v", err)
	}
}

func TestBeltTurns(t *testing.T) {
	// East, then north (-Y), then east again.
	path := []geom.Offset{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: -1}, {X: 2, Y: -1}}
	b, err := NewBelt(path, geom.R0, geom.R0)
	if err != nil {
		t.Fatalf("NewBelt: %v", err)
	}
	wantDirs := []geom.Direction{geom.R0, geom.R90, geom.R0, geom.R0}
	wantTurns := []Turn{TurnPass, TurnLeft, TurnRight, TurnPass}
	for i := range path {
		if b.Dirs()[i] != wantDirs[i] || b.Turns()[i] != wantTurns[i] {
			t.Fatalf("cell %d: dir=%v turn=%v want %v/%v", i, b.Dirs()[i], b.Turns()[i], wantDirs[i], wantTurns[i])
		}
	}

	r, err := RestoreBelt(path, b.Dirs(), b.Turns())
	if err != nil {
		t.Fatalf("RestoreBelt: %v", err)
	}
	if r.Entry() != b.Entry() || r.Exit() != b.Exit() {
		t.Fatalf("restore changed ends: %v/%v vs %v/%v", r.Entry(), r.Exit(), b.Entry(), b.Exit())
	}
	bad := append([]Turn(nil), b.Turns()...)
	bad[2] = TurnLeft
	if _, err := RestoreBelt(path, b.Dirs(), bad); !errors.Is(err, ErrBadState) {
		t.Fatalf("inconsistent turns must be rejected, err=%v", err)
	}
}

func TestCutterSplitsFullMine(t *testing.T) {
	c := NewCutter()
	src := feed(t, c.In())
	src.Send(fullBlackSquare)
	Fire(c, nil)
	u, ok1 := c.Upper().Peek().(item.Mine)
	l, ok2 := c.Lower().Peek().(item.Mine)
	if !ok1 || !ok2 || u.Extent != item.Half || l.Extent != item.Half {
		t.Fatalf("cut produced %v / %v", c.Upper().Peek(), c.Lower().Peek())
	}
	if u.Orientation != geom.R0 || l.Orientation != geom.R180 {
		t.Fatalf("orientations %v / %v", u.Orientation, l.Orientation)
	}
}

func TestCutterWaitsForBothOutputs(t *testing.T) {
	c := NewCutter()
	src := feed(t, c.In())
	c.Lower().Send(item.TraitCarrier{})
	src.Send(fullBlackSquare)
	Fire(c, nil)
	if src.Ready() {
		t.Fatalf("cutter consumed input while an output was occupied")
	}
}

func TestCutterStallIsPermanent(t *testing.T) {
	c := NewCutter()
	src := feed(t, c.In())
	upper := drain(t, c.Upper())
	lower := drain(t, c.Lower())

	src.Send(item.TraitCarrier{Trait: item.Red})
	Fire(c, nil)
	if !c.Stalled() {
		t.Fatalf("cutter must stall on a trait carrier")
	}
	if !src.Ready() {
		t.Fatalf("the offending item must be consumed")
	}
	for i := 0; i < 10; i++ {
		src.Send(fullBlackSquare)
		Fire(c, nil)
		if upper.Ready() || lower.Ready() {
			t.Fatalf("stalled cutter emitted an item on fire %d", i)
		}
	}
	if src.Ready() {
		t.Fatalf("stalled cutter must stop accepting input")
	}
}

func TestMixerPaintsMine(t *testing.T) {
	m := NewMixer()
	mines := feed(t, m.MineIn())
	traits := feed(t, m.TraitIn())
	mines.Send(fullBlackSquare)
	Fire(m, nil)
	if m.Out().Peek() != nil || mines.Ready() {
		t.Fatalf("mixer must wait for both inputs")
	}
	traits.Send(item.TraitCarrier{Trait: item.Blue})
	Fire(m, nil)
	got, ok := m.Out().Peek().(item.Mine)
	if !ok || got.Trait != item.Blue || got.Kind != item.Square || got.Extent != item.Full {
		t.Fatalf("mixer output=%v", m.Out().Peek())
	}
}

func TestMixerStallsOnSwappedInputs(t *testing.T) {
	m := NewMixer()
	mines := feed(t, m.MineIn())
	traits := feed(t, m.TraitIn())
	mines.Send(item.TraitCarrier{Trait: item.Red})
	traits.Send(fullBlackSquare)
	Fire(m, nil)
	if !m.Stalled() {
		t.Fatalf("mixer must stall")
	}
	if !mines.Ready() || !traits.Ready() {
		t.Fatalf("both items must be discarded")
	}
	mines.Send(fullBlackSquare)
	traits.Send(item.TraitCarrier{Trait: item.Red})
	Fire(m, nil)
	if m.Out().Peek() != nil {
		t.Fatalf("stalled mixer produced %v", m.Out().Peek())
	}
}

func TestRotator(t *testing.T) {
	r := NewRotator()
	src := feed(t, r.In())
	dst := drain(t, r.Out())
	src.Send(item.Mine{Kind: item.Round, Extent: item.Half, Orientation: geom.R0})
	Fire(r, nil)
	got, ok := dst.Receive().(item.Mine)
	if !ok || got.Orientation != geom.R270 {
		t.Fatalf("rotator output=%v", got)
	}
	src.Send(item.TraitCarrier{Trait: item.Red})
	Fire(r, nil)
	if c, ok := dst.Receive().(item.TraitCarrier); !ok || c.Trait != item.Red {
		t.Fatalf("carrier must pass unchanged")
	}
}

func TestTrashDrainsAllSides(t *testing.T) {
	tr := NewTrash()
	var srcs []*port.Output
	for _, d := range geom.Directions {
		srcs = append(srcs, feed(t, tr.In(d)))
	}
	for _, s := range srcs {
		s.Send(fullBlackSquare)
	}
	Fire(tr, nil)
	if tr.Received() != 4 {
		t.Fatalf("received=%d want 4", tr.Received())
	}
}

func TestCenterDeliversToEnv(t *testing.T) {
	c, err := NewCenter(2)
	if err != nil {
		t.Fatalf("NewCenter: %v", err)
	}
	if len(c.Footprint()) != 4 || len(c.Ports()) != 8 {
		t.Fatalf("2x2 center: cells=%d ports=%d", len(c.Footprint()), len(c.Ports()))
	}
	src := feed(t, c.Ports()[0].Port.(*port.Input))
	src.Send(fullBlackSquare)
	env := &fakeEnv{}
	Fire(c, env)
	if c.Received() != 1 || len(env.delivered) != 1 {
		t.Fatalf("center received=%d delivered=%d", c.Received(), len(env.delivered))
	}
	if _, err := NewCenter(0); err == nil {
		t.Fatalf("zero-size center must be rejected")
	}
}

func TestTimingPeriods(t *testing.T) {
	ratios := DefaultRatios()
	tm := Timing{FPS: 60, BaseRates: DefaultBaseRates(), Ratios: &ratios}
	if p := tm.Period(KindMiner); p != 120 {
		t.Fatalf("miner period=%d want 120", p)
	}
	if p := tm.Period(KindBelt); p != 60 {
		t.Fatalf("belt period=%d want 60", p)
	}
	if err := ratios.Set(KindBelt, 4); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if p := tm.Period(KindBelt); p != 15 {
		t.Fatalf("belt period at 4x=%d want 15", p)
	}
	if err := ratios.Set(KindBelt, 0.4); !errors.Is(err, ErrBadRatio) {
		t.Fatalf("ratio below range must be rejected, err=%v", err)
	}
	if err := ratios.Set(KindBelt, 4.5); !errors.Is(err, ErrBadRatio) {
		t.Fatalf("ratio above range must be rejected, err=%v", err)
	}
	ratios.Reset()
	if p := tm.Period(KindBelt); p != 60 {
		t.Fatalf("reset belt period=%d", p)
	}
	tm.BaseRates[KindRotator] = 0
	if p := tm.Period(KindRotator); p != 0 {
		t.Fatalf("zero rate must never fire, period=%d", p)
	}
	// 60 / (1 * 0.7) = 85.7 -> 86
	_ = ratios.Set(KindCutter, 0.7)
	if p := tm.Period(KindCutter); p != 86 {
		t.Fatalf("cutter period=%d want 86", p)
	}
	for _, rate := range []float64{1e-300, 5e-324} {
		tm.BaseRates[KindMiner] = rate
		if p := tm.Period(KindMiner); p != 0 {
			t.Fatalf("rate %g: period=%d, a vanishing rate must never fire", rate, p)
		}
	}
}

func TestAdvanceFiresOnPeriod(t *testing.T) {
	tr := NewTrash()
	src := feed(t, tr.In(geom.R0))
	fired := 0
	for i := 0; i < 9; i++ {
		src.Send(fullBlackSquare)
		if Advance(tr, nil, 3) {
			fired++
		}
	}
	if fired != 3 || tr.Received() != 3 {
		t.Fatalf("fired=%d received=%d want 3/3", fired, tr.Received())
	}
	if Advance(tr, nil, 0) || Advance(tr, nil, -1) {
		t.Fatalf("non-positive period must never fire")
	}
}

func TestKindTags(t *testing.T) {
	want := "MBCXRTA"
	for i, k := range Kinds {
		if k.Tag() != want[i] {
			t.Fatalf("%s tag=%c want %c", k, k.Tag(), want[i])
		}
		back, ok := KindFromTag(want[i])
		if !ok || back != k {
			t.Fatalf("KindFromTag(%c)=%v,%v", want[i], back, ok)
		}
	}
	if _, ok := KindFromTag('Z'); ok {
		t.Fatalf("unknown tag accepted")
	}
}
