package terrain

import (
	"testing"

	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/grid"
)

func TestGenerateIsDeterministic(t *testing.T) {
	a := Generate(32, 32, 1337, 400)
	b := Generate(32, 32, 1337, 400)
	filled := 0
	for i := range a.Cells {
		if a.Cells[i] != b.Cells[i] {
			t.Fatalf("cell %d differs: %v vs %v", i, a.Cells[i], b.Cells[i])
		}
		if a.Cells[i] != nil {
			filled++
		}
	}
	if filled == 0 {
		t.Fatalf("expected some resources at 400 permille")
	}
}

func TestGenerateDensityBounds(t *testing.T) {
	empty := Generate(16, 16, 7, 0)
	for i, r := range empty.Cells {
		if r != nil {
			t.Fatalf("cell %d has %v at zero density", i, r)
		}
	}
	full := Generate(18, 18, 7, 1000)
	// Every region hosts a patch, so each patch center carries a resource.
	for ry := 0; ry < 3; ry++ {
		for rx := 0; rx < 3; rx++ {
			hv := Hash2(7, rx, ry)
			p := geom.Pos{X: rx*RegionSize + int((hv>>10)%RegionSize), Y: ry*RegionSize + int((hv>>20)%RegionSize)}
			if full.At(p) == nil {
				t.Fatalf("patch center %v is empty", p)
			}
		}
	}
}

func TestApplySkipsCenter(t *testing.T) {
	g, err := grid.New(12, 12)
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	c, err := g.PlaceCenter(4)
	if err != nil {
		t.Fatalf("PlaceCenter: %v", err)
	}
	l := Generate(12, 12, 99, 1000)
	if err := l.Apply(g); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			p := geom.Pos{X: x, Y: y}
			if g.DeviceAt(p) == c {
				if g.Ground(p) != nil {
					t.Fatalf("center cell %v got %v", p, g.Ground(p))
				}
				continue
			}
			if g.Ground(p) != l.At(p) {
				t.Fatalf("cell %v not copied", p)
			}
		}
	}
}
