package device

import (
	"fmt"

	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/item"
	"github.com/caterpillar-1/CShapeZ/internal/sim/port"
)

// Turn classifies how a belt cell bends. It only matters for rendering.
type Turn uint8

const (
	TurnPass Turn = iota
	TurnLeft
	TurnRight
)

func (t Turn) Valid() bool { return t <= TurnRight }

func (t Turn) String() string {
	switch t {
	case TurnPass:
		return "PASS"
	case TurnLeft:
		return "LEFT"
	case TurnRight:
		return "RIGHT"
	default:
		return "?"
	}
}

// Belt moves items along an ordered path of cells. The path holds len-1
// interior slots; the last slot is the output port's own buffer.
type Belt struct {
	core
	in  *port.Input
	out *port.Output

	entry geom.Direction
	exit  geom.Direction
	dirs  []geom.Direction
	turns []Turn
	buf   []item.Item
}

// NewBelt builds a belt over path. entry is the travel direction of items
// arriving at the first cell; exit is the direction the last cell emits to.
func NewBelt(path []geom.Offset, entry, exit geom.Direction) (*Belt, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	entry, exit = entry&3, exit&3
	n := len(path)
	occupied := make(map[geom.Offset]bool, n)
	for _, p := range path {
		occupied[p] = true
	}
	inFace := entry.Opposite()
	if occupied[path[0].Step(inFace)] {
		return nil, fmt.Errorf("%w: input faces into the path", ErrInvalidPath)
	}
	if occupied[path[n-1].Step(exit)] {
		return nil, fmt.Errorf("%w: output faces into the path", ErrInvalidPath)
	}
	if n == 1 && inFace == exit {
		return nil, fmt.Errorf("%w: input and output share a side", ErrInvalidPath)
	}

	dirs := make([]geom.Direction, n)
	for i := 0; i < n-1; i++ {
		d, _ := path[i].DirTo(path[i+1])
		dirs[i] = d
	}
	dirs[n-1] = exit

	turns := make([]Turn, n)
	incoming := entry
	for i := 0; i < n; i++ {
		switch dirs[i] {
		case incoming:
			turns[i] = TurnPass
		case incoming.Left():
			turns[i] = TurnLeft
		case incoming.Right():
			turns[i] = TurnRight
		default:
			return nil, fmt.Errorf("%w: u-turn at cell %d", ErrInvalidPath, i)
		}
		incoming = dirs[i]
	}

	return &Belt{
		core:  newCore(path),
		in:    port.NewInput(),
		out:   port.NewOutput(),
		entry: entry,
		exit:  exit,
		dirs:  dirs,
		turns: turns,
		buf:   make([]item.Item, n-1),
	}, nil
}

// RestoreBelt rebuilds a belt from its persisted path, direction and turn arrays.
func RestoreBelt(path []geom.Offset, dirs []geom.Direction, turns []Turn) (*Belt, error) {
	n := len(path)
	if n == 0 || len(dirs) != n || len(turns) != n {
		return nil, fmt.Errorf("%w: belt arrays have lengths %d/%d/%d", ErrBadState, n, len(dirs), len(turns))
	}
	var entry geom.Direction
	switch turns[0] {
	case TurnPass:
		entry = dirs[0]
	case TurnLeft:
		entry = dirs[0].Right()
	case TurnRight:
		entry = dirs[0].Left()
	default:
		return nil, fmt.Errorf("%w: turn %d", ErrBadState, turns[0])
	}
	b, err := NewBelt(path, entry, dirs[n-1])
	if err != nil {
		return nil, err
	}
	for i := range dirs {
		if b.dirs[i] != dirs[i]&3 || b.turns[i] != turns[i] {
			return nil, fmt.Errorf("%w: belt cell %d disagrees with its path", ErrBadState, i)
		}
	}
	return b, nil
}

// ValidatePath requires a non-empty path starting at the origin whose cells
// are distinct and 4-adjacent in order.
func ValidatePath(path []geom.Offset) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	if path[0] != (geom.Offset{}) {
		return fmt.Errorf("%w: must start at the base cell", ErrInvalidPath)
	}
	seen := make(map[geom.Offset]bool, len(path))
	for i, p := range path {
		if seen[p] {
			return fmt.Errorf("%w: cell %v repeated", ErrInvalidPath, p)
		}
		seen[p] = true
		if i > 0 {
			if _, ok := path[i-1].DirTo(p); !ok {
				return fmt.Errorf("%w: %v and %v are not adjacent", ErrInvalidPath, path[i-1], p)
			}
		}
	}
	return nil
}

func (b *Belt) Kind() Kind { return KindBelt }

func (b *Belt) Ports() []PortSpec {
	n := len(b.footprint)
	return []PortSpec{
		{Port: b.in, Offset: b.footprint[0], Dir: b.entry.Opposite()},
		{Port: b.out, Offset: b.footprint[n-1], Dir: b.exit},
	}
}

func (b *Belt) In() *port.Input { return b.in }

func (b *Belt) Out() *port.Output { return b.out }

func (b *Belt) Entry() geom.Direction { return b.entry }

func (b *Belt) Exit() geom.Direction { return b.exit }

// Dirs returns, per cell, the direction toward the next cell (the exit for the last).
func (b *Belt) Dirs() []geom.Direction { return b.dirs }

func (b *Belt) Turns() []Turn { return b.turns }

// Resident counts items held in interior slots plus the output buffer.
func (b *Belt) Resident() int {
	n := 0
	for _, it := range b.buf {
		if it != nil {
			n++
		}
	}
	if b.out.Peek() != nil {
		n++
	}
	return n
}

// Slots returns the interior slots followed by the output buffer.
func (b *Belt) Slots() []item.Item {
	out := make([]item.Item, 0, len(b.buf)+1)
	out = append(out, b.buf...)
	return append(out, b.out.Peek())
}

func (b *Belt) next(Env) {
	if len(b.buf) == 0 {
		if b.out.Ready() && b.in.Ready() {
			b.out.Send(b.in.Receive())
		}
		return
	}
	last := len(b.buf) - 1
	if b.out.Ready() && b.buf[last] != nil {
		if b.out.Send(b.buf[last]) {
			b.buf[last] = nil
		}
	}
	for i := last - 1; i >= 0; i-- {
		if b.buf[i+1] == nil {
			b.buf[i+1] = b.buf[i]
			b.buf[i] = nil
		}
	}
	if b.buf[0] == nil && b.in.Ready() {
		b.buf[0] = b.in.Receive()
	}
}
