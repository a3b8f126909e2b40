package device

import (
	"fmt"
	"sort"

	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/item"
	"github.com/caterpillar-1/CShapeZ/internal/sim/port"
)

// Hint holds, per local direction, the port already present on the neighbor
// cell facing back at a path cell. Directions leading into the path are nil.
type Hint [4]port.Port

// Request is what a placement tool hands to a factory.
type Request struct {
	Path   []geom.Offset
	Hints  []Hint
	Ground item.Resource
}

type Factory func(req Request) (Device, error)

// Registry maps placeable kinds to their factories. The center is not
// placeable and has no factory.
type Registry struct {
	factories map[Kind]Factory
}

func NewRegistry() *Registry {
	r := &Registry{factories: map[Kind]Factory{}}
	r.Register(KindMiner, singleCellFactory(func() Device { return NewMiner() }))
	r.Register(KindBelt, beltFactory)
	r.Register(KindCutter, fixedFactory(func() Device { return NewCutter() }))
	r.Register(KindMixer, fixedFactory(func() Device { return NewMixer() }))
	r.Register(KindRotator, singleCellFactory(func() Device { return NewRotator() }))
	r.Register(KindTrash, singleCellFactory(func() Device { return NewTrash() }))
	return r
}

func (r *Registry) Register(k Kind, f Factory) {
	if !k.Valid() || f == nil {
		return
	}
	r.factories[k] = f
}

// Kinds returns the registered kinds in ascending order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Create builds a device of kind k, or returns an error and no device.
func (r *Registry) Create(k Kind, req Request) (Device, error) {
	f, ok := r.factories[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
	return f(req)
}

func singleCellFactory(mk func() Device) Factory {
	return func(req Request) (Device, error) {
		if len(req.Path) > 1 {
			return nil, fmt.Errorf("%w: single-cell device given %d cells", ErrInvalidPath, len(req.Path))
		}
		if len(req.Path) == 1 && req.Path[0] != (geom.Offset{}) {
			return nil, fmt.Errorf("%w: must start at the base cell", ErrInvalidPath)
		}
		return mk(), nil
	}
}

// fixedFactory ignores the selected path; the device brings its own footprint.
func fixedFactory(mk func() Device) Factory {
	return func(Request) (Device, error) { return mk(), nil }
}

func beltFactory(req Request) (Device, error) {
	if err := ValidatePath(req.Path); err != nil {
		return nil, err
	}
	entry, exit, err := inferBeltEnds(req.Path, req.Hints)
	if err != nil {
		return nil, err
	}
	return NewBelt(req.Path, entry, exit)
}

// inferBeltEnds picks the input side of the first cell and the output side of
// the last one. A neighbor already exposing a complementary port wins;
// otherwise the belt runs straight through its end cells.
func inferBeltEnds(path []geom.Offset, hints []Hint) (entry, exit geom.Direction, err error) {
	n := len(path)
	occupied := make(map[geom.Offset]bool, n)
	for _, p := range path {
		occupied[p] = true
	}
	free := func(cell geom.Offset, d geom.Direction) bool { return !occupied[cell.Step(d)] }
	hintAt := func(i int) Hint {
		if i < len(hints) {
			return hints[i]
		}
		return Hint{}
	}

	inFace, found := geom.R0, false
	h0 := hintAt(0)
	for _, d := range geom.Directions {
		if _, ok := h0[d].(*port.Output); ok && free(path[0], d) {
			inFace, found = d, true
			break
		}
	}
	if !found {
		pref := geom.R180
		if n > 1 {
			step, _ := path[0].DirTo(path[1])
			pref = step.Opposite()
		}
		if inFace, found = firstFree(path[0], pref, free, nil); !found {
			return 0, 0, fmt.Errorf("%w: no free side for the input", ErrInvalidPath)
		}
	}

	last := path[n-1]
	taken := func(d geom.Direction) bool { return n == 1 && d == inFace }
	outFace, found := geom.R0, false
	hl := hintAt(n - 1)
	for _, d := range geom.Directions {
		if _, ok := hl[d].(*port.Input); ok && free(last, d) && !taken(d) {
			outFace, found = d, true
			break
		}
	}
	if !found {
		pref := inFace.Opposite()
		if n > 1 {
			pref, _ = path[n-2].DirTo(last)
		}
		if outFace, found = firstFree(last, pref, free, taken); !found {
			return 0, 0, fmt.Errorf("%w: no free side for the output", ErrInvalidPath)
		}
	}
	return inFace.Opposite(), outFace, nil
}

func firstFree(cell geom.Offset, pref geom.Direction, free func(geom.Offset, geom.Direction) bool, taken func(geom.Direction) bool) (geom.Direction, bool) {
	for i := 0; i < 4; i++ {
		d := pref.Add(geom.Direction(i))
		if !free(cell, d) {
			continue
		}
		if taken != nil && taken(d) {
			continue
		}
		return d, true
	}
	return 0, false
}
