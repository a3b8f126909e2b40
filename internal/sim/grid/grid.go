// Package grid owns the cell-to-device and cell-to-port maps of a factory
// network and performs every topology edit on it.
//
// A Grid is not safe for concurrent use. Install, Remove and Advance must all
// be called from the single simulation driver.
package grid

import (
	"errors"
	"fmt"

	"github.com/caterpillar-1/CShapeZ/internal/sim/device"
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/item"
	"github.com/caterpillar-1/CShapeZ/internal/sim/port"
)

var (
	ErrOutOfBounds     = errors.New("grid: out of bounds")
	ErrCenterCollision = errors.New("grid: overlaps the center")
	ErrCenterRemoval   = errors.New("grid: the center cannot be removed")
	ErrNotInstalled    = errors.New("grid: device not installed")
	ErrInvariant       = errors.New("grid: topology invariant violated")
	ErrBadSize         = errors.New("grid: bad size")
)

type Grid struct {
	w, h int

	ground   []item.Resource
	deviceAt []device.Device
	portAt   [][4]port.Port

	// devices is the registration order; Advance walks it front to back.
	devices []device.Device
	center  *device.Center
}

func New(w, h int) (*Grid, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadSize, w, h)
	}
	n := w * h
	return &Grid{
		w:        w,
		h:        h,
		ground:   make([]item.Resource, n),
		deviceAt: make([]device.Device, n),
		portAt:   make([][4]port.Port, n),
	}, nil
}

func (g *Grid) Size() (int, int) { return g.w, g.h }

func (g *Grid) InBounds(p geom.Pos) bool {
	return p.X >= 0 && p.X < g.w && p.Y >= 0 && p.Y < g.h
}

func (g *Grid) idx(p geom.Pos) int { return p.Y*g.w + p.X }

// Ground returns the resource under p, or nil outside the grid.
func (g *Grid) Ground(p geom.Pos) item.Resource {
	if !g.InBounds(p) {
		return nil
	}
	return g.ground[g.idx(p)]
}

func (g *Grid) SetGround(p geom.Pos, r item.Resource) error {
	if !g.InBounds(p) {
		return fmt.Errorf("%w: %v", ErrOutOfBounds, p)
	}
	g.ground[g.idx(p)] = r
	return nil
}

func (g *Grid) DeviceAt(p geom.Pos) device.Device {
	if !g.InBounds(p) {
		return nil
	}
	return g.deviceAt[g.idx(p)]
}

// PortAt returns the port registered on the d side of cell p.
func (g *Grid) PortAt(p geom.Pos, d geom.Direction) port.Port {
	if !g.InBounds(p) {
		return nil
	}
	return g.portAt[g.idx(p)][d&3]
}

// otherPort is the port facing back at (p, d) from the neighbor cell.
func (g *Grid) otherPort(p geom.Pos, d geom.Direction) port.Port {
	return g.PortAt(p.Step(d), d.Opposite())
}

// Devices returns installed devices in registration order.
func (g *Grid) Devices() []device.Device {
	out := make([]device.Device, len(g.devices))
	copy(out, g.devices)
	return out
}

func (g *Grid) Len() int { return len(g.devices) }

func (g *Grid) Center() *device.Center { return g.center }

func (g *Grid) installed(d device.Device) int {
	for i, x := range g.devices {
		if x == d {
			return i
		}
	}
	return -1
}

// Advance runs one tick: every device's timer moves in registration order and
// fires when its period elapses. It returns how many devices fired.
func (g *Grid) Advance(t device.Timing, env device.Env) int {
	fired := 0
	for _, d := range g.Devices() {
		if device.Advance(d, env, t.Period(d.Kind())) {
			fired++
		}
	}
	return fired
}
