package world

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caterpillar-1/CShapeZ/internal/observerproto"
	"github.com/caterpillar-1/CShapeZ/internal/sim/device"
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/goal"
	"github.com/caterpillar-1/CShapeZ/internal/sim/grid"
)

var (
	ErrBadCommand = errors.New("world: bad command")
	ErrNothingAt  = errors.New("world: no device at position")
)

func (w *World) apply(nowTick uint64, c observerproto.CommandMsg) observerproto.ResultMsg {
	res := observerproto.ResultMsg{
		Type:            observerproto.TypeResult,
		ProtocolVersion: observerproto.Version,
		ID:              c.ID,
		Tick:            nowTick,
	}
	var err error
	switch c.Type {
	case observerproto.TypePlace:
		err = w.place(nowTick, c)
	case observerproto.TypeRemove:
		err = w.remove(nowTick, c)
	case observerproto.TypeRatio:
		err = w.setRatio(nowTick, c)
	case observerproto.TypeUpgrade, observerproto.TypeEnhance:
		err = w.upgrade(nowTick, c)
	case observerproto.TypeMoneyRatio:
		err = w.goal.UpgradeMoneyRatio()
	default:
		err = fmt.Errorf("%w: type %q", ErrBadCommand, c.Type)
	}
	if err != nil {
		res.Code = ErrorCode(err)
		res.Message = err.Error()
		return res
	}
	res.OK = true
	return res
}

// ErrorCode maps an apply error onto a protocol result code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, grid.ErrOutOfBounds), errors.Is(err, grid.ErrCenterCollision), errors.Is(err, grid.ErrCenterRemoval):
		return observerproto.ErrInvalidTarget
	case errors.Is(err, device.ErrInvalidPath):
		return observerproto.ErrInvalidPath
	case errors.Is(err, ErrNothingAt), errors.Is(err, grid.ErrNotInstalled):
		return observerproto.ErrNotFound
	case errors.Is(err, goal.ErrInsufficientFunds), errors.Is(err, goal.ErrNoEnhance):
		return observerproto.ErrNoResource
	case errors.Is(err, goal.ErrAtCap):
		return observerproto.ErrConflict
	case errors.Is(err, grid.ErrInvariant):
		return observerproto.ErrInternal
	default:
		return observerproto.ErrBadRequest
	}
}

func parseKind(name string) (device.Kind, error) {
	k, ok := device.ParseKind(strings.ToUpper(strings.TrimSpace(name)))
	if !ok {
		return 0, fmt.Errorf("%w: %q", device.ErrUnknownKind, name)
	}
	return k, nil
}

func (w *World) place(nowTick uint64, c observerproto.CommandMsg) error {
	base := geom.Pos{X: c.Pos[0], Y: c.Pos[1]}
	k, err := parseKind(c.Device)
	if err == nil && (c.Rotation < 0 || c.Rotation > int(geom.R270)) {
		err = fmt.Errorf("%w: rotation %d", ErrBadCommand, c.Rotation)
	}
	rot := geom.Normalize(c.Rotation)
	var d device.Device
	if err == nil {
		path := make([]geom.Offset, len(c.Path))
		for i, p := range c.Path {
			path[i] = geom.Offset{X: p[0], Y: p[1]}
		}
		req := device.Request{Path: path, Ground: w.grid.Ground(base)}
		if k == device.KindBelt {
			req.Hints = w.grid.PortHint(base, rot, path)
		}
		d, err = w.registry.Create(k, req)
	}
	if err == nil {
		err = w.grid.Install(base, rot, d)
	}
	if err != nil {
		w.auditEvent(nowTick, "PLACE_REJECTED", strings.ToUpper(c.Device), base, rot, ErrorCode(err), map[string]any{"error": err.Error()})
		return err
	}
	w.auditEvent(nowTick, "PLACE", k.String(), base, rot, "", nil)
	return nil
}

func (w *World) remove(nowTick uint64, c observerproto.CommandMsg) error {
	p := geom.Pos{X: c.Pos[0], Y: c.Pos[1]}
	d, err := w.grid.RemoveAt(p)
	if err == nil && d == nil {
		err = fmt.Errorf("%w: %v", ErrNothingAt, p)
	}
	if err != nil {
		w.auditEvent(nowTick, "REMOVE_REJECTED", "", p, 0, ErrorCode(err), map[string]any{"error": err.Error()})
		return err
	}
	delete(w.stalled, d)
	base, rot := d.Placement()
	w.auditEvent(nowTick, "REMOVE", d.Kind().String(), base, rot, "", nil)
	return nil
}

func (w *World) setRatio(nowTick uint64, c observerproto.CommandMsg) error {
	k, err := parseKind(c.Device)
	if err != nil {
		return err
	}
	old := w.ratios.Get(k)
	if err := w.ratios.Set(k, c.Ratio); err != nil {
		return err
	}
	w.auditEvent(nowTick, "RATIO", k.String(), geom.Pos{}, 0, "", map[string]any{"from": old, "to": c.Ratio})
	return nil
}

func (w *World) upgrade(nowTick uint64, c observerproto.CommandMsg) error {
	k, err := parseKind(c.Device)
	if err != nil {
		return err
	}
	old := w.ratios.Get(k)
	if c.Type == observerproto.TypeEnhance {
		err = w.goal.Enhance(k, &w.ratios)
	} else {
		err = w.goal.UpgradeDevice(k, &w.ratios)
	}
	if err != nil {
		return err
	}
	w.auditEvent(nowTick, c.Type, k.String(), geom.Pos{}, 0, "", map[string]any{"from": old, "to": w.ratios.Get(k)})
	return nil
}
