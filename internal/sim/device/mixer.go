package device

import (
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/item"
	"github.com/caterpillar-1/CShapeZ/internal/sim/port"
)

// Mixer paints the mine from inMine with the trait from inTrait.
type Mixer struct {
	core
	inMine  *port.Input
	inTrait *port.Input
	out     *port.Output

	stalled bool
}

func NewMixer() *Mixer {
	return &Mixer{
		core:    newCore(twoCell),
		inMine:  port.NewInput(),
		inTrait: port.NewInput(),
		out:     port.NewOutput(),
	}
}

func (m *Mixer) Kind() Kind { return KindMixer }

func (m *Mixer) Ports() []PortSpec {
	return []PortSpec{
		{Port: m.inMine, Offset: twoCell[0], Dir: geom.R180},
		{Port: m.inTrait, Offset: twoCell[1], Dir: geom.R180},
		{Port: m.out, Offset: twoCell[0], Dir: geom.R0},
	}
}

func (m *Mixer) MineIn() *port.Input { return m.inMine }

func (m *Mixer) TraitIn() *port.Input { return m.inTrait }

func (m *Mixer) Out() *port.Output { return m.out }

func (m *Mixer) Stalled() bool { return m.stalled }

func (m *Mixer) SetStalled(v bool) { m.stalled = v }

func (m *Mixer) next(Env) {
	if m.stalled {
		return
	}
	if !m.inMine.Ready() || !m.inTrait.Ready() || !m.out.Ready() {
		return
	}
	a := m.inMine.Receive()
	b := m.inTrait.Receive()
	mine, ok1 := a.(item.Mine)
	carrier, ok2 := b.(item.TraitCarrier)
	if !ok1 || !ok2 {
		// Both items are dropped.
		m.stalled = true
		return
	}
	m.out.Send(mine.WithTrait(carrier.Trait))
}
