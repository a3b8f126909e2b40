package device

import (
	"errors"
	"testing"

	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/port"
)

func TestRegistryExcludesCenter(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Create(KindCenter, Request{}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("center must not be placeable, err=%v", err)
	}
	if got := len(r.Kinds()); got != 6 {
		t.Fatalf("registered kinds=%d want 6", got)
	}
}

func TestSingleCellFactoryRejectsLongPath(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(KindMiner, Request{Path: straightPath(2)})
	if !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("err=%v want ErrInvalidPath", err)
	}
	d, err := r.Create(KindTrash, Request{Path: straightPath(1)})
	if err != nil || d.Kind() != KindTrash {
		t.Fatalf("Create trash: %v %v", d, err)
	}
}

func TestBeltFactoryDefaultsStraight(t *testing.T) {
	r := NewRegistry()
	d, err := r.Create(KindBelt, Request{Path: straightPath(3)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b := d.(*Belt)
	if b.Entry() != geom.R0 || b.Exit() != geom.R0 {
		t.Fatalf("straight belt ends=%v/%v", b.Entry(), b.Exit())
	}
}

func TestBeltFactoryFollowsHints(t *testing.T) {
	r := NewRegistry()
	path := straightPath(2)
	hints := make([]Hint, 2)
	// An output waits north of the first cell; an input waits south of the last.
	hints[0][geom.R90] = port.NewOutput()
	hints[1][geom.R270] = port.NewInput()
	d, err := r.Create(KindBelt, Request{Path: path, Hints: hints})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b := d.(*Belt)
	if got := b.Ports()[0].Dir; got != geom.R90 {
		t.Fatalf("input faces %v want R90", got)
	}
	if got := b.Ports()[1].Dir; got != geom.R270 {
		t.Fatalf("output faces %v want R270", got)
	}
	if b.Turns()[0] != TurnLeft || b.Turns()[1] != TurnRight {
		t.Fatalf("turns=%v", b.Turns())
	}
}

func TestBeltFactoryRejectsNonAdjacent(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(KindBelt, Request{Path: []geom.Offset{{}, {X: 1, Y: 1}}})
	if !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("err=%v want ErrInvalidPath", err)
	}
}
