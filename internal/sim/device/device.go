// Package device implements the placeable machines of the factory network.
//
// Every kind is a concrete type behind the sealed Device interface. The grid
// owns installed devices and drives them through Advance; the per-kind next
// operation is only reachable from there.
package device

import (
	"errors"
	"fmt"

	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/item"
	"github.com/caterpillar-1/CShapeZ/internal/sim/port"
)

type Kind uint8

const (
	KindMiner Kind = iota
	KindBelt
	KindCutter
	KindMixer
	KindRotator
	KindTrash
	KindCenter

	KindCount = 7
)

var (
	ErrInvalidPath = errors.New("device: invalid path")
	ErrUnknownKind = errors.New("device: unknown kind")
	ErrBadRatio    = errors.New("device: ratio out of range")
	ErrBadState    = errors.New("device: inconsistent persisted state")
)

var kindTags = [KindCount]byte{'M', 'B', 'C', 'X', 'R', 'T', 'A'}

var kindNames = [KindCount]string{"MINER", "BELT", "CUTTER", "MIXER", "ROTATOR", "TRASH", "CENTER"}

// Kinds lists every kind in persisted order.
var Kinds = [KindCount]Kind{KindMiner, KindBelt, KindCutter, KindMixer, KindRotator, KindTrash, KindCenter}

func (k Kind) Valid() bool { return k < KindCount }

func (k Kind) Tag() byte {
	if !k.Valid() {
		return '?'
	}
	return kindTags[k]
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
	return kindNames[k]
}

func KindFromTag(b byte) (Kind, bool) {
	for i, t := range kindTags {
		if t == b {
			return Kind(i), true
		}
	}
	return 0, false
}

func ParseKind(s string) (Kind, bool) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), true
		}
	}
	return 0, false
}

// PortSpec places a port in the device's local frame.
type PortSpec struct {
	Port   port.Port
	Offset geom.Offset
	Dir    geom.Direction
}

// Env is the part of the network a device may touch while firing.
type Env interface {
	// Ground returns the resource under p, or nil.
	Ground(p geom.Pos) item.Resource
	// Deliver hands a consumed item to the goal collaborator.
	Deliver(it item.Item)
}

type Device interface {
	Kind() Kind
	Footprint() []geom.Offset
	Ports() []PortSpec
	Placement() (geom.Pos, geom.Direction)
	SetPlacement(base geom.Pos, rot geom.Direction)
	Frames() int
	SetFrames(n int)
	Stalled() bool

	state() *core
	next(env Env)
}

type core struct {
	base      geom.Pos
	rot       geom.Direction
	frames    int
	footprint []geom.Offset
}

func newCore(footprint []geom.Offset) core {
	fp := make([]geom.Offset, len(footprint))
	copy(fp, footprint)
	return core{footprint: fp}
}

func (c *core) state() *core { return c }

func (c *core) Footprint() []geom.Offset { return c.footprint }

func (c *core) Placement() (geom.Pos, geom.Direction) { return c.base, c.rot }

func (c *core) SetPlacement(base geom.Pos, rot geom.Direction) {
	c.base = base
	c.rot = rot & 3
}

func (c *core) Frames() int { return c.frames }

func (c *core) SetFrames(n int) {
	if n < 0 {
		n = 0
	}
	c.frames = n
}

func (c *core) Stalled() bool { return false }

// Advance bumps the frame counter of d and fires its operation once the
// counter reaches period. A non-positive period never fires.
func Advance(d Device, env Env, period int) bool {
	if d == nil || period <= 0 {
		return false
	}
	c := d.state()
	c.frames++
	if c.frames < period {
		return false
	}
	c.frames = 0
	d.next(env)
	return true
}

// Fire runs d's operation immediately, bypassing its timer.
func Fire(d Device, env Env) {
	if d != nil {
		d.next(env)
	}
}

var singleCell = []geom.Offset{{X: 0, Y: 0}}

var twoCell = []geom.Offset{{X: 0, Y: 0}, {X: 0, Y: 1}}

func sameFootprint(a, b []geom.Offset) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CheckFootprint verifies that a persisted footprint matches d's own.
func CheckFootprint(d Device, fp []geom.Offset) error {
	if !sameFootprint(d.Footprint(), fp) {
		return fmt.Errorf("%w: %s footprint mismatch", ErrBadState, d.Kind())
	}
	return nil
}
