package device

import (
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/item"
	"github.com/caterpillar-1/CShapeZ/internal/sim/port"
)

// Cutter splits a mine into its upper and lower parts.
//
// Receiving anything other than a mine stalls the cutter for good.
type Cutter struct {
	core
	in   *port.Input
	outU *port.Output
	outL *port.Output

	stalled bool
}

func NewCutter() *Cutter {
	return &Cutter{
		core: newCore(twoCell),
		in:   port.NewInput(),
		outU: port.NewOutput(),
		outL: port.NewOutput(),
	}
}

func (c *Cutter) Kind() Kind { return KindCutter }

func (c *Cutter) Ports() []PortSpec {
	return []PortSpec{
		{Port: c.in, Offset: twoCell[0], Dir: geom.R180},
		{Port: c.outU, Offset: twoCell[0], Dir: geom.R0},
		{Port: c.outL, Offset: twoCell[1], Dir: geom.R0},
	}
}

func (c *Cutter) In() *port.Input { return c.in }

func (c *Cutter) Upper() *port.Output { return c.outU }

func (c *Cutter) Lower() *port.Output { return c.outL }

func (c *Cutter) Stalled() bool { return c.stalled }

func (c *Cutter) SetStalled(v bool) { c.stalled = v }

func (c *Cutter) next(Env) {
	if c.stalled {
		return
	}
	if !c.outU.Ready() || !c.outL.Ready() {
		return
	}
	it := c.in.Receive()
	if it == nil {
		return
	}
	switch v := it.(type) {
	case item.Mine:
		upper, lower := item.Split(v)
		if upper != nil {
			c.outU.Send(upper)
		}
		if lower != nil {
			c.outL.Send(lower)
		}
	case item.TraitCarrier:
		c.stalled = true
	default:
		c.stalled = true
	}
}
