// Package terrain lays out ground resources for a fresh network.
//
// Resources come in round patches. The grid is split into regions of
// RegionSize cells; each region hosts a patch with probability permille/1000
// and the patch kind is picked from the region hash, so a given seed always
// produces the same map.
package terrain

import (
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/grid"
	"github.com/caterpillar-1/CShapeZ/internal/sim/item"
)

const (
	RegionSize  = 6
	PatchRadius = 2
)

// Palette is every resource a generated map can contain, indexed by patch kind.
var Palette = []item.Resource{
	item.MineResource{Kind: item.Square, Trait: item.Black},
	item.MineResource{Kind: item.Round, Trait: item.Black},
	item.TraitResource{Trait: item.Red},
	item.TraitResource{Trait: item.Blue},
}

// Layer is a generated ground layer in row-major order.
type Layer struct {
	W, H  int
	Cells []item.Resource
}

func (l *Layer) At(p geom.Pos) item.Resource {
	if p.X < 0 || p.X >= l.W || p.Y < 0 || p.Y >= l.H {
		return nil
	}
	return l.Cells[p.Y*l.W+p.X]
}

func Generate(w, h int, seed int64, permille int) *Layer {
	l := &Layer{W: w, H: h, Cells: make([]item.Resource, w*h)}
	prob := uint64(ClampPermille(permille))
	if prob == 0 || w <= 0 || h <= 0 {
		return l
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			l.Cells[y*w+x] = patchAt(seed, x, y, prob)
		}
	}
	return l
}

// patchAt checks the 3x3 neighborhood of regions for a patch covering (x,y).
func patchAt(seed int64, x, y int, prob uint64) item.Resource {
	rx := floorDiv(x, RegionSize)
	ry := floorDiv(y, RegionSize)
	r2 := PatchRadius * PatchRadius
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			cx, cy := rx+dx, ry+dy
			hv := Hash2(seed, cx, cy)
			if hv%1000 >= prob {
				continue
			}
			px := cx*RegionSize + int((hv>>10)%RegionSize)
			py := cy*RegionSize + int((hv>>20)%RegionSize)
			ddx, ddy := x-px, y-py
			if ddx*ddx+ddy*ddy <= r2 {
				return Palette[(hv>>32)%uint64(len(Palette))]
			}
		}
	}
	return nil
}

// Apply copies the layer onto g, skipping cells the Center occupies.
func (l *Layer) Apply(g *grid.Grid) error {
	c := g.Center()
	for y := 0; y < l.H; y++ {
		for x := 0; x < l.W; x++ {
			p := geom.Pos{X: x, Y: y}
			if c != nil && g.DeviceAt(p) == c {
				continue
			}
			if err := g.SetGround(p, l.Cells[y*l.W+x]); err != nil {
				return err
			}
		}
	}
	return nil
}
