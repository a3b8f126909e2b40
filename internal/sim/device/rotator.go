package device

import (
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/item"
	"github.com/caterpillar-1/CShapeZ/internal/sim/port"
)

// Rotator turns mines a quarter clockwise and passes anything else through.
type Rotator struct {
	core
	in  *port.Input
	out *port.Output
}

func NewRotator() *Rotator {
	return &Rotator{core: newCore(singleCell), in: port.NewInput(), out: port.NewOutput()}
}

func (r *Rotator) Kind() Kind { return KindRotator }

func (r *Rotator) Ports() []PortSpec {
	return []PortSpec{
		{Port: r.in, Offset: geom.Offset{}, Dir: geom.R180},
		{Port: r.out, Offset: geom.Offset{}, Dir: geom.R0},
	}
}

func (r *Rotator) In() *port.Input { return r.in }

func (r *Rotator) Out() *port.Output { return r.out }

func (r *Rotator) next(Env) {
	if !r.out.Ready() {
		return
	}
	it := r.in.Receive()
	if it == nil {
		return
	}
	if m, ok := it.(item.Mine); ok {
		it = m.RotateR()
	}
	r.out.Send(it)
}
