// Package savecodec reads and writes the binary form of a network: the ground
// layer, every installed device, the per-kind speed ratios and the goal
// counters, in that order. The format carries no version; fields are
// big-endian and must be read back in the order written.
//
// Port links are never stored. Decode re-installs each device so that
// connectivity is always derived from geometry.
package savecodec

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/caterpillar-1/CShapeZ/internal/sim/device"
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/goal"
	"github.com/caterpillar-1/CShapeZ/internal/sim/grid"
	"github.com/caterpillar-1/CShapeZ/internal/sim/item"
)

var ErrFormat = errors.New("savecodec: malformed save")

// MaxCells bounds w*h on load.
const MaxCells = 1 << 22

// State is everything a save holds.
type State struct {
	Grid   *grid.Grid
	Ratios device.Ratios
	Goal   goal.State
}

func Marshal(s *State) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Unmarshal(b []byte) (*State, error) {
	s, err := Decode(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return s, nil
}

func Encode(out io.Writer, s *State) error {
	if s == nil || s.Grid == nil {
		return fmt.Errorf("savecodec: nothing to encode")
	}
	w := &writer{w: bufio.NewWriter(out)}
	g := s.Grid

	gw, gh := g.Size()
	w.i32(gw)
	w.i32(gh)
	for y := 0; y < gh; y++ {
		for x := 0; x < gw; x++ {
			writeResource(w, g.Ground(geom.Pos{X: x, Y: y}))
		}
	}

	devs := g.Devices()
	w.u32(uint32(len(devs)))
	for _, d := range devs {
		if err := writeDevice(w, d); err != nil {
			return err
		}
	}

	for _, k := range device.Kinds {
		w.f64(s.Ratios.Get(k))
	}

	w.i32(s.Goal.ProblemSet)
	w.i32(s.Goal.Task)
	w.i32(s.Goal.Received)
	w.i64(s.Goal.Money)
	w.f64(s.Goal.MoneyRatio)
	w.i32(s.Goal.Enhance)

	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

func writeResource(w *writer, r item.Resource) {
	switch v := r.(type) {
	case nil:
		w.u8(item.TagNone)
	case item.MineResource:
		w.u8(item.TagMine)
		w.u8(uint8(v.Kind))
		w.u8(uint8(v.Trait))
	case item.TraitResource:
		w.u8(item.TagTrait)
		w.u8(uint8(v.Trait))
	default:
		if w.err == nil {
			w.err = fmt.Errorf("savecodec: unknown resource %T", r)
		}
	}
}

func writeDevice(w *writer, d device.Device) error {
	base, rot := d.Placement()
	w.i32(base.X)
	w.i32(base.Y)
	w.u8(uint8(rot))
	w.u8(d.Kind().Tag())
	w.i32(d.Frames())
	fp := d.Footprint()
	w.u32(uint32(len(fp)))
	for _, o := range fp {
		w.i32(o.X)
		w.i32(o.Y)
	}

	switch v := d.(type) {
	case *device.Belt:
		dirs, turns := v.Dirs(), v.Turns()
		w.u32(uint32(len(dirs)))
		for _, dir := range dirs {
			w.u8(uint8(dir))
		}
		for _, t := range turns {
			w.u8(uint8(t))
		}
	case *device.Cutter:
		w.boolean(v.Stalled())
	case *device.Mixer:
		w.boolean(v.Stalled())
	case *device.Center:
		w.i32(v.Size())
	case *device.Miner, *device.Rotator, *device.Trash:
	default:
		return fmt.Errorf("%w: %T", device.ErrUnknownKind, d)
	}
	return w.err
}

// Decode rebuilds a network. On any error no state is returned.
func Decode(in io.Reader) (*State, error) {
	r := &reader{r: bufio.NewReader(in)}

	gw, gh := r.i32(), r.i32()
	if r.err != nil {
		return nil, r.err
	}
	if gw <= 0 || gh <= 0 || gw*gh > MaxCells {
		return nil, fmt.Errorf("%w: grid %dx%d", ErrFormat, gw, gh)
	}
	g, err := grid.New(gw, gh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	for y := 0; y < gh; y++ {
		for x := 0; x < gw; x++ {
			res := readResource(r)
			if r.err != nil {
				return nil, r.err
			}
			_ = g.SetGround(geom.Pos{X: x, Y: y}, res)
		}
	}

	n := r.count("device", gw*gh)
	for i := 0; i < n && r.err == nil; i++ {
		if err := readDevice(r, g, gw*gh); err != nil {
			return nil, err
		}
		if g.Len() != i+1 {
			return nil, fmt.Errorf("%w: device %d overlaps an earlier one", ErrFormat, i)
		}
	}

	s := &State{Grid: g}
	for _, k := range device.Kinds {
		v := r.f64()
		if r.err != nil {
			break
		}
		if err := s.Ratios.Set(k, v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
	}

	s.Goal.ProblemSet = r.i32()
	s.Goal.Task = r.i32()
	s.Goal.Received = r.i32()
	s.Goal.Money = r.i64()
	s.Goal.MoneyRatio = r.f64()
	s.Goal.Enhance = r.i32()
	if r.err != nil {
		return nil, r.err
	}
	if err := goal.New().Restore(s.Goal); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return s, nil
}

func readResource(r *reader) item.Resource {
	switch tag := r.u8(); tag {
	case item.TagNone:
		return nil
	case item.TagMine:
		k, t := item.Kind(r.u8()), item.Trait(r.u8())
		if !k.Valid() || !t.Valid() {
			r.fail("mine resource %d/%d", k, t)
			return nil
		}
		return item.MineResource{Kind: k, Trait: t}
	case item.TagTrait:
		t := item.Trait(r.u8())
		if !t.Valid() {
			r.fail("trait resource %d", t)
			return nil
		}
		return item.TraitResource{Trait: t}
	default:
		r.fail("ground tag %q", tag)
		return nil
	}
}

func readDevice(r *reader, g *grid.Grid, maxCells int) error {
	base := geom.Pos{X: r.i32(), Y: r.i32()}
	rot := geom.Direction(r.u8())
	tag := r.u8()
	frames := r.i32()
	nfp := r.count("footprint", maxCells)
	fp := make([]geom.Offset, 0, nfp)
	for i := 0; i < nfp && r.err == nil; i++ {
		fp = append(fp, geom.Offset{X: r.i32(), Y: r.i32()})
	}
	if r.err != nil {
		return r.err
	}
	if !rot.Valid() {
		return fmt.Errorf("%w: rotation %d", ErrFormat, rot)
	}
	kind, ok := device.KindFromTag(tag)
	if !ok {
		return fmt.Errorf("%w: device tag %q", ErrFormat, tag)
	}

	var d device.Device
	switch kind {
	case device.KindMiner:
		d = device.NewMiner()
	case device.KindRotator:
		d = device.NewRotator()
	case device.KindTrash:
		d = device.NewTrash()
	case device.KindCutter:
		c := device.NewCutter()
		c.SetStalled(r.boolean())
		d = c
	case device.KindMixer:
		m := device.NewMixer()
		m.SetStalled(r.boolean())
		d = m
	case device.KindBelt:
		b, err := readBelt(r, fp)
		if err != nil {
			return err
		}
		d = b
	case device.KindCenter:
		size := r.i32()
		if r.err != nil {
			return r.err
		}
		c, err := device.NewCenter(size)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFormat, err)
		}
		d = c
	}
	if r.err != nil {
		return r.err
	}
	if err := device.CheckFootprint(d, fp); err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	d.SetFrames(frames)
	if err := g.Install(base, rot, d); err != nil {
		return fmt.Errorf("%w: install %s at %v: %v", ErrFormat, kind, base, err)
	}
	return nil
}

func readBelt(r *reader, path []geom.Offset) (*device.Belt, error) {
	n := r.count("belt cell", len(path))
	dirs := make([]geom.Direction, n)
	turns := make([]device.Turn, n)
	for i := range dirs {
		dirs[i] = geom.Direction(r.u8())
	}
	for i := range turns {
		turns[i] = device.Turn(r.u8())
	}
	if r.err != nil {
		return nil, r.err
	}
	for i := range dirs {
		if !dirs[i].Valid() || !turns[i].Valid() {
			return nil, fmt.Errorf("%w: belt cell %d dir %d turn %d", ErrFormat, i, dirs[i], turns[i])
		}
	}
	b, err := device.RestoreBelt(path, dirs, turns)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return b, nil
}
