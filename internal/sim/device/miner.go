package device

import (
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/port"
)

// Miner extracts one item from the ground resource under its base cell.
type Miner struct {
	core
	out *port.Output

	mined uint64
}

func NewMiner() *Miner {
	return &Miner{core: newCore(singleCell), out: port.NewOutput()}
}

func (m *Miner) Kind() Kind { return KindMiner }

func (m *Miner) Ports() []PortSpec {
	return []PortSpec{{Port: m.out, Offset: geom.Offset{}, Dir: geom.R0}}
}

func (m *Miner) Out() *port.Output { return m.out }

func (m *Miner) Mined() uint64 { return m.mined }

func (m *Miner) next(env Env) {
	if !m.out.Ready() || env == nil {
		return
	}
	res := env.Ground(m.base)
	if res == nil {
		return
	}
	it := res.CreateItem()
	if it == nil {
		return
	}
	if m.out.Send(it) {
		m.mined++
	}
}
