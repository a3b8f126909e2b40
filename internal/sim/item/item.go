// Package item defines the immutable values that travel between device ports.
package item

import (
	"fmt"

	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
)

type Kind uint8

const (
	Round Kind = iota
	Square
)

func (k Kind) Valid() bool { return k <= Square }

func (k Kind) String() string {
	switch k {
	case Round:
		return "ROUND"
	case Square:
		return "SQUARE"
	default:
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
}

// Extent is how many quarters of the shape remain.
type Extent uint8

const (
	Quarter Extent = 1
	Half    Extent = 2
	Full    Extent = 4
)

func (e Extent) Valid() bool { return e == Quarter || e == Half || e == Full }

func (e Extent) String() string {
	switch e {
	case Quarter:
		return "QUARTER"
	case Half:
		return "HALF"
	case Full:
		return "FULL"
	default:
		return fmt.Sprintf("EXTENT(%d)", uint8(e))
	}
}

type Trait uint8

const (
	Black Trait = iota
	Red
	Blue
)

func (t Trait) Valid() bool { return t <= Blue }

func (t Trait) String() string {
	switch t {
	case Black:
		return "BLACK"
	case Red:
		return "RED"
	case Blue:
		return "BLUE"
	default:
		return fmt.Sprintf("TRAIT(%d)", uint8(t))
	}
}

// Item is the closed set {Mine, TraitCarrier}. A nil Item means "no item".
type Item interface {
	isItem()
	String() string
}

type Mine struct {
	Kind        Kind
	Extent      Extent
	Orientation geom.Direction
	Trait       Trait
}

// TraitCarrier only carries a trait used to paint a Mine.
type TraitCarrier struct {
	Trait Trait
}

func (Mine) isItem()         {}
func (TraitCarrier) isItem() {}

func (m Mine) String() string {
	return fmt.Sprintf("MINE(%s,%s,%s,%s)", m.Kind, m.Extent, m.Orientation, m.Trait)
}

func (c TraitCarrier) String() string { return fmt.Sprintf("TRAIT(%s)", c.Trait) }

// Same compares kind, extent and trait. Orientation is ignored.
func (m Mine) Same(o Mine) bool {
	return m.Kind == o.Kind && m.Extent == o.Extent && m.Trait == o.Trait
}

func (m Mine) WithTrait(t Trait) Mine {
	m.Trait = t
	return m
}

// RotateR turns the mine a quarter clockwise.
func (m Mine) RotateR() Mine {
	m.Orientation = m.Orientation.Right()
	return m
}

// CutUpper returns the part of m kept by the upper output of a cutter.
func (m Mine) CutUpper() (Mine, bool) {
	switch m.Extent {
	case Full:
		return Mine{Kind: m.Kind, Extent: Half, Orientation: geom.R0, Trait: m.Trait}, true
	case Half:
		switch m.Orientation {
		case geom.R0:
			return m, true
		case geom.R90:
			return Mine{Kind: m.Kind, Extent: Quarter, Orientation: geom.R90, Trait: m.Trait}, true
		case geom.R270:
			return Mine{Kind: m.Kind, Extent: Quarter, Orientation: geom.R0, Trait: m.Trait}, true
		}
	case Quarter:
		if m.Orientation == geom.R0 || m.Orientation == geom.R90 {
			return m, true
		}
	}
	return Mine{}, false
}

// CutLower returns the part of m kept by the lower output of a cutter.
func (m Mine) CutLower() (Mine, bool) {
	switch m.Extent {
	case Full:
		return Mine{Kind: m.Kind, Extent: Half, Orientation: geom.R180, Trait: m.Trait}, true
	case Half:
		switch m.Orientation {
		case geom.R90:
			return Mine{Kind: m.Kind, Extent: Quarter, Orientation: geom.R180, Trait: m.Trait}, true
		case geom.R180:
			return m, true
		case geom.R270:
			return Mine{Kind: m.Kind, Extent: Quarter, Orientation: geom.R270, Trait: m.Trait}, true
		}
	case Quarter:
		if m.Orientation == geom.R180 || m.Orientation == geom.R270 {
			return m, true
		}
	}
	return Mine{}, false
}

// Split cuts m into its upper and lower parts. A nil part means nothing is left on that side.
func Split(m Mine) (upper, lower Item) {
	if u, ok := m.CutUpper(); ok {
		upper = u
	}
	if l, ok := m.CutLower(); ok {
		lower = l
	}
	return upper, lower
}
