// Package port implements the typed connection endpoints between devices.
//
// An Output owns at most one item in its buffer. An Input owns nothing; it
// pulls from the Output it is linked to. Links only ever join an Input to an
// Output.
package port

import "github.com/caterpillar-1/CShapeZ/internal/sim/item"

type Kind uint8

const (
	KindInput Kind = iota + 1
	KindOutput
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "IN"
	case KindOutput:
		return "OUT"
	default:
		return "?"
	}
}

// Port is either *Input or *Output.
type Port interface {
	Kind() Kind
	Ready() bool
	Connected() bool
	// Disconnect breaks the link on both sides.
	Disconnect()
	sealed()
}

type Output struct {
	buf  item.Item
	peer *Input
}

type Input struct {
	peer *Output
}

func NewOutput() *Output { return &Output{} }

func NewInput() *Input { return &Input{} }

func (*Output) sealed() {}
func (*Input) sealed()  {}

func (*Output) Kind() Kind { return KindOutput }
func (*Input) Kind() Kind  { return KindInput }

// Ready reports whether the buffer can accept an item.
func (o *Output) Ready() bool { return o.buf == nil }

// Send moves it into the buffer. It fails when the buffer is occupied.
func (o *Output) Send(it item.Item) bool {
	if it == nil || o.buf != nil {
		return false
	}
	o.buf = it
	return true
}

// Take empties the buffer and hands its item to the caller.
func (o *Output) Take() item.Item {
	it := o.buf
	o.buf = nil
	return it
}

// Peek returns the buffered item without transferring it.
func (o *Output) Peek() item.Item { return o.buf }

// Clear destroys whatever is buffered.
func (o *Output) Clear() { o.buf = nil }

func (o *Output) Connected() bool { return o.peer != nil }

func (o *Output) Disconnect() {
	if o.peer != nil {
		o.peer.peer = nil
		o.peer = nil
	}
}

// Ready reports whether the linked output holds an item.
func (in *Input) Ready() bool { return in.peer != nil && in.peer.buf != nil }

// Receive takes the linked output's item, or returns nil.
func (in *Input) Receive() item.Item {
	if in.peer == nil {
		return nil
	}
	return in.peer.Take()
}

func (in *Input) Connected() bool { return in.peer != nil }

func (in *Input) Disconnect() {
	if in.peer != nil {
		in.peer.peer = nil
		in.peer = nil
	}
}

// Compatible reports whether a and b may be linked.
func Compatible(a, b Port) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Kind() != b.Kind()
}

// Link joins an input and an output in both directions, dropping any previous
// links either side had. Same-kind pairs are left untouched and Link returns false.
func Link(a, b Port) bool {
	if !Compatible(a, b) {
		return false
	}
	in, out := split(a, b)
	if in.peer == out {
		return true
	}
	in.Disconnect()
	out.Disconnect()
	in.peer = out
	out.peer = in
	return true
}

// Linked reports whether a and b are linked to each other.
func Linked(a, b Port) bool {
	if !Compatible(a, b) {
		return false
	}
	in, out := split(a, b)
	return in.peer == out && out.peer == in
}

func split(a, b Port) (*Input, *Output) {
	if in, ok := a.(*Input); ok {
		return in, b.(*Output)
	}
	return b.(*Input), a.(*Output)
}
