package item

import "fmt"

// Resource is a static per-cell ground deposit that a miner extracts from.
type Resource interface {
	CreateItem() Item
	Tag() byte
	String() string
}

const (
	TagNone  byte = 'N'
	TagMine  byte = 'M'
	TagTrait byte = 'T'
)

// MineResource yields full, unrotated mines.
type MineResource struct {
	Kind  Kind
	Trait Trait
}

type TraitResource struct {
	Trait Trait
}

func (r MineResource) CreateItem() Item {
	return Mine{Kind: r.Kind, Extent: Full, Trait: r.Trait}
}

func (r MineResource) Tag() byte { return TagMine }

func (r MineResource) String() string { return fmt.Sprintf("MINE_RES(%s,%s)", r.Kind, r.Trait) }

func (r TraitResource) CreateItem() Item { return TraitCarrier{Trait: r.Trait} }

func (r TraitResource) Tag() byte { return TagTrait }

func (r TraitResource) String() string { return fmt.Sprintf("TRAIT_RES(%s)", r.Trait) }

// Resources enumerates every distinct ground resource.
func Resources() []Resource {
	out := []Resource{}
	for _, k := range []Kind{Round, Square} {
		for _, t := range []Trait{Black, Red, Blue} {
			out = append(out, MineResource{Kind: k, Trait: t})
		}
	}
	for _, t := range []Trait{Black, Red, Blue} {
		out = append(out, TraitResource{Trait: t})
	}
	return out
}
