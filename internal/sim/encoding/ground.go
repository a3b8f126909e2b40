package encoding

import (
	"fmt"

	"github.com/caterpillar-1/CShapeZ/internal/sim/item"
)

// GroundIDs maps each cell to its palette id. Empty cells are 0 and
// palette[i] is i+1.
func GroundIDs(cells []item.Resource, palette []item.Resource) ([]uint16, error) {
	index := make(map[item.Resource]uint16, len(palette))
	for i, r := range palette {
		index[r] = uint16(i + 1)
	}
	ids := make([]uint16, len(cells))
	for i, r := range cells {
		if r == nil {
			continue
		}
		id, ok := index[r]
		if !ok {
			return nil, fmt.Errorf("encoding: %v missing from palette", r)
		}
		ids[i] = id
	}
	return ids, nil
}

func GroundFromIDs(ids []uint16, palette []item.Resource) ([]item.Resource, error) {
	cells := make([]item.Resource, len(ids))
	for i, id := range ids {
		if id == 0 {
			continue
		}
		if int(id) > len(palette) {
			return nil, fmt.Errorf("%w: palette id %d", ErrCorrupt, id)
		}
		cells[i] = palette[id-1]
	}
	return cells, nil
}

// PaletteNames labels palette ids for clients; index 0 is the empty cell.
func PaletteNames(palette []item.Resource) []string {
	out := make([]string, 0, len(palette)+1)
	out = append(out, "NONE")
	for _, r := range palette {
		out = append(out, r.String())
	}
	return out
}
