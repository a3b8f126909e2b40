package device

import (
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/port"
)

// Trash destroys whatever reaches any of its four sides.
type Trash struct {
	core
	ins [4]*port.Input

	received uint64
}

func NewTrash() *Trash {
	t := &Trash{core: newCore(singleCell)}
	for i := range t.ins {
		t.ins[i] = port.NewInput()
	}
	return t
}

func (t *Trash) Kind() Kind { return KindTrash }

func (t *Trash) Ports() []PortSpec {
	out := make([]PortSpec, 0, len(t.ins))
	for _, d := range geom.Directions {
		out = append(out, PortSpec{Port: t.ins[d], Offset: geom.Offset{}, Dir: d})
	}
	return out
}

// In returns the input facing local direction d.
func (t *Trash) In(d geom.Direction) *port.Input { return t.ins[d&3] }

func (t *Trash) Received() uint64 { return t.received }

func (t *Trash) next(Env) {
	for _, in := range t.ins {
		if !in.Ready() {
			continue
		}
		if in.Receive() != nil {
			t.received++
		}
	}
}
