package grid

import (
	"github.com/caterpillar-1/CShapeZ/internal/sim/device"
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
)

// PortHint reports, for every cell of a prospective path, the ports that
// neighbors already expose toward it. Hints are indexed by local direction;
// sides leading to another path cell are left empty.
func (g *Grid) PortHint(base geom.Pos, rot geom.Direction, path []geom.Offset) []device.Hint {
	inPath := make(map[geom.Offset]bool, len(path))
	for _, p := range path {
		inPath[p] = true
	}
	hints := make([]device.Hint, len(path))
	for i, off := range path {
		cell := geom.MapToGrid(off, base, rot)
		for _, d := range geom.Directions {
			if inPath[off.Step(d)] {
				continue
			}
			hints[i][d] = g.otherPort(cell, geom.PortDirection(rot, d))
		}
	}
	return hints
}
