package port

import (
	"testing"

	"github.com/caterpillar-1/CShapeZ/internal/sim/item"
)

func TestOutputHoldsAtMostOneItem(t *testing.T) {
	out := NewOutput()
	if !out.Ready() {
		t.Fatalf("fresh output must be ready")
	}
	if !out.Send(item.TraitCarrier{Trait: item.Red}) {
		t.Fatalf("first send must succeed")
	}
	if out.Ready() {
		t.Fatalf("occupied output must not be ready")
	}
	if out.Send(item.TraitCarrier{Trait: item.Blue}) {
		t.Fatalf("second send must fail while occupied")
	}
	got := out.Take()
	if c, ok := got.(item.TraitCarrier); !ok || c.Trait != item.Red {
		t.Fatalf("Take=%v, want the first item", got)
	}
	if out.Take() != nil {
		t.Fatalf("Take on empty buffer must return nil")
	}
	if out.Send(nil) {
		t.Fatalf("nil send must fail")
	}
}

func TestInputPullsFromLinkedOutput(t *testing.T) {
	in, out := NewInput(), NewOutput()
	if in.Ready() || in.Receive() != nil {
		t.Fatalf("unlinked input must be idle")
	}
	if !Link(in, out) {
		t.Fatalf("Link(in,out) failed")
	}
	if in.Ready() {
		t.Fatalf("input must not be ready while output is empty")
	}
	out.Send(item.Mine{Kind: item.Round, Extent: item.Full})
	if !in.Ready() {
		t.Fatalf("input must be ready once the output holds an item")
	}
	if _, ok := in.Receive().(item.Mine); !ok {
		t.Fatalf("Receive must return the mine")
	}
	if !out.Ready() {
		t.Fatalf("Receive must empty the output")
	}
}

func TestLinkRejectsSameKind(t *testing.T) {
	a, b := NewInput(), NewInput()
	if Link(a, b) {
		t.Fatalf("input-input link must be rejected")
	}
	o1, o2 := NewOutput(), NewOutput()
	if Link(o1, o2) {
		t.Fatalf("output-output link must be rejected")
	}
	if a.Connected() || b.Connected() || o1.Connected() || o2.Connected() {
		t.Fatalf("rejected links must leave ports unconnected")
	}
}

func TestDisconnectBreaksBothSides(t *testing.T) {
	in, out := NewInput(), NewOutput()
	Link(out, in)
	out.Send(item.TraitCarrier{})
	in.Disconnect()
	if in.Connected() || out.Connected() {
		t.Fatalf("both sides must be disconnected")
	}
	if in.Ready() {
		t.Fatalf("disconnected input must never be ready")
	}
	if out.Peek() == nil {
		t.Fatalf("output keeps its buffer after disconnect")
	}
}

func TestRelinkDropsPreviousPeer(t *testing.T) {
	in := NewInput()
	o1, o2 := NewOutput(), NewOutput()
	Link(in, o1)
	Link(in, o2)
	if o1.Connected() {
		t.Fatalf("old peer must be released")
	}
	if !Linked(in, o2) {
		t.Fatalf("new link missing")
	}
}
