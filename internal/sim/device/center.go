package device

import (
	"fmt"

	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/port"
)

const DefaultCenterSize = 4

// Center is the singleton delivery hub. It accepts items on every outward
// side of its perimeter and reports each one to the goal collaborator.
type Center struct {
	core
	size  int
	ports []PortSpec

	received uint64
}

func NewCenter(size int) (*Center, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: center size %d", ErrBadState, size)
	}
	fp := make([]geom.Offset, 0, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			fp = append(fp, geom.Offset{X: x, Y: y})
		}
	}
	c := &Center{core: newCore(fp), size: size}
	inside := func(o geom.Offset) bool {
		return o.X >= 0 && o.X < size && o.Y >= 0 && o.Y < size
	}
	for _, o := range fp {
		for _, d := range geom.Directions {
			if inside(o.Step(d)) {
				continue
			}
			c.ports = append(c.ports, PortSpec{Port: port.NewInput(), Offset: o, Dir: d})
		}
	}
	return c, nil
}

func (c *Center) Kind() Kind { return KindCenter }

func (c *Center) Ports() []PortSpec { return c.ports }

func (c *Center) Size() int { return c.size }

func (c *Center) Received() uint64 { return c.received }

func (c *Center) next(env Env) {
	for _, ps := range c.ports {
		in := ps.Port.(*port.Input)
		if !in.Ready() {
			continue
		}
		it := in.Receive()
		if it == nil {
			continue
		}
		c.received++
		if env != nil {
			env.Deliver(it)
		}
	}
}
