package grid

import (
	"fmt"

	"github.com/caterpillar-1/CShapeZ/internal/sim/device"
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/port"
)

type slot struct {
	pos geom.Pos
	dir geom.Direction
	p   port.Port
}

// plan is a fully validated install; applying it cannot fail.
type plan struct {
	cells     []geom.Pos
	slots     []slot
	displaced []device.Device
}

func (g *Grid) planInstall(base geom.Pos, rot geom.Direction, d device.Device) (plan, error) {
	var pl plan
	if d == nil {
		return pl, fmt.Errorf("%w: nil device", ErrInvariant)
	}
	if g.installed(d) >= 0 {
		return pl, fmt.Errorf("%w: %s already installed", ErrInvariant, d.Kind())
	}

	fp := d.Footprint()
	inFootprint := make(map[geom.Offset]bool, len(fp))
	cellSet := make(map[geom.Pos]bool, len(fp))
	seenDisplaced := map[device.Device]bool{}
	for _, off := range fp {
		p := geom.MapToGrid(off, base, rot)
		if !g.InBounds(p) {
			return pl, fmt.Errorf("%w: %v", ErrOutOfBounds, p)
		}
		if cellSet[p] {
			return pl, fmt.Errorf("%w: footprint repeats %v", ErrInvariant, p)
		}
		cellSet[p] = true
		inFootprint[off] = true
		occ := g.deviceAt[g.idx(p)]
		if occ != nil && g.center != nil && occ == device.Device(g.center) {
			return pl, fmt.Errorf("%w: %v", ErrCenterCollision, p)
		}
		if occ != nil && !seenDisplaced[occ] {
			seenDisplaced[occ] = true
			pl.displaced = append(pl.displaced, occ)
		}
		pl.cells = append(pl.cells, p)
	}

	type key struct {
		pos geom.Pos
		dir geom.Direction
	}
	seenSlot := map[key]bool{}
	for _, ps := range d.Ports() {
		if ps.Port == nil || !inFootprint[ps.Offset] {
			return pl, fmt.Errorf("%w: %s port outside its footprint", ErrInvariant, d.Kind())
		}
		p := geom.MapToGrid(ps.Offset, base, rot)
		r := geom.PortDirection(rot, ps.Dir)
		k := key{p, r}
		if seenSlot[k] {
			return pl, fmt.Errorf("%w: %s registers %v/%v twice", ErrInvariant, d.Kind(), p, r)
		}
		seenSlot[k] = true
		// A registered port must belong to the device being displaced from that cell.
		if cur := g.portAt[g.idx(p)][r]; cur != nil && !seenDisplaced[g.deviceAt[g.idx(p)]] {
			return pl, fmt.Errorf("%w: slot %v/%v held by a foreign port", ErrInvariant, p, r)
		}
		pl.slots = append(pl.slots, slot{pos: p, dir: r, p: ps.Port})
	}
	for _, old := range pl.displaced {
		if err := g.checkRemovable(old); err != nil {
			return pl, err
		}
	}
	return pl, nil
}

// Install places d with its base cell at base, rotated by rot. Devices under
// the footprint are removed first. Nothing changes when an error is returned.
func (g *Grid) Install(base geom.Pos, rot geom.Direction, d device.Device) error {
	if _, ok := d.(*device.Center); ok {
		return g.InstallCenter(base, d.(*device.Center))
	}
	pl, err := g.planInstall(base, rot&3, d)
	if err != nil {
		return err
	}
	g.apply(base, rot&3, d, pl)
	return nil
}

// InstallCenter installs the singleton center. Its cells must be free.
func (g *Grid) InstallCenter(base geom.Pos, c *device.Center) error {
	if c == nil {
		return fmt.Errorf("%w: nil center", ErrInvariant)
	}
	if g.center != nil {
		return fmt.Errorf("%w: center already installed", ErrInvariant)
	}
	pl, err := g.planInstall(base, geom.R0, c)
	if err != nil {
		return err
	}
	if len(pl.displaced) > 0 {
		return fmt.Errorf("%w: center placed over %d devices", ErrInvariant, len(pl.displaced))
	}
	g.apply(base, geom.R0, c, pl)
	g.center = c
	return nil
}

// PlaceCenter builds a size x size center and installs it in the middle of the grid.
func (g *Grid) PlaceCenter(size int) (*device.Center, error) {
	if size > g.w || size > g.h {
		return nil, fmt.Errorf("%w: center %d does not fit %dx%d", ErrOutOfBounds, size, g.w, g.h)
	}
	c, err := device.NewCenter(size)
	if err != nil {
		return nil, err
	}
	base := geom.Pos{X: (g.w - size) / 2, Y: (g.h - size) / 2}
	if err := g.InstallCenter(base, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (g *Grid) apply(base geom.Pos, rot geom.Direction, d device.Device, pl plan) {
	for _, old := range pl.displaced {
		g.detach(old)
	}
	for _, p := range pl.cells {
		g.deviceAt[g.idx(p)] = d
	}
	for _, s := range pl.slots {
		g.portAt[g.idx(s.pos)][s.dir] = s.p
		if peer := g.otherPort(s.pos, s.dir); peer != nil {
			port.Link(s.p, peer)
		}
	}
	d.SetPlacement(base, rot)
	g.devices = append(g.devices, d)
}

// Remove tears d down: its ports are unlinked and unregistered, its cells
// freed and the grid drops it.
func (g *Grid) Remove(d device.Device) error {
	if d != nil && g.center != nil && d == device.Device(g.center) {
		return ErrCenterRemoval
	}
	if err := g.checkRemovable(d); err != nil {
		return err
	}
	g.detach(d)
	return nil
}

// RemoveAt removes whatever device occupies p. It returns nil when p is empty.
func (g *Grid) RemoveAt(p geom.Pos) (device.Device, error) {
	if !g.InBounds(p) {
		return nil, fmt.Errorf("%w: %v", ErrOutOfBounds, p)
	}
	d := g.deviceAt[g.idx(p)]
	if d == nil {
		return nil, nil
	}
	if err := g.Remove(d); err != nil {
		return nil, err
	}
	return d, nil
}

func (g *Grid) checkRemovable(d device.Device) error {
	if d == nil || g.installed(d) < 0 {
		return ErrNotInstalled
	}
	base, rot := d.Placement()
	for _, off := range d.Footprint() {
		p := geom.MapToGrid(off, base, rot)
		if !g.InBounds(p) || g.deviceAt[g.idx(p)] != d {
			return fmt.Errorf("%w: %s does not own %v", ErrInvariant, d.Kind(), p)
		}
	}
	for _, ps := range d.Ports() {
		p := geom.MapToGrid(ps.Offset, base, rot)
		r := geom.PortDirection(rot, ps.Dir)
		if g.portAt[g.idx(p)][r] != ps.Port {
			return fmt.Errorf("%w: %s port missing at %v/%v", ErrInvariant, d.Kind(), p, r)
		}
	}
	return nil
}

// detach assumes checkRemovable passed.
func (g *Grid) detach(d device.Device) {
	base, rot := d.Placement()
	for _, ps := range d.Ports() {
		p := geom.MapToGrid(ps.Offset, base, rot)
		r := geom.PortDirection(rot, ps.Dir)
		ps.Port.Disconnect()
		g.portAt[g.idx(p)][r] = nil
	}
	for _, off := range d.Footprint() {
		g.deviceAt[g.idx(geom.MapToGrid(off, base, rot))] = nil
	}
	i := g.installed(d)
	g.devices = append(g.devices[:i], g.devices[i+1:]...)
	if g.center != nil && d == device.Device(g.center) {
		g.center = nil
	}
}
