package world

import (
	"github.com/caterpillar-1/CShapeZ/internal/sim/device"
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
)

func (w *World) auditEvent(tick uint64, action, kind string, pos geom.Pos, rot geom.Direction, reason string, details map[string]any) {
	entry := AuditEntry{
		Tick:     tick,
		Action:   action,
		Kind:     kind,
		Pos:      pos.ToArray(),
		Rotation: int(rot),
		Reason:   reason,
		Details:  details,
	}
	if w.auditLogger != nil {
		_ = w.auditLogger.WriteAudit(entry)
	}
	w.auditsThisTick = append(w.auditsThisTick, entry)
}

// checkStalls audits devices that entered the stall state this tick.
func (w *World) checkStalls(tick uint64) {
	for d := range w.stalled {
		if !w.installed(d) {
			delete(w.stalled, d)
		}
	}
	for _, d := range w.grid.Devices() {
		if !d.Stalled() || w.stalled[d] {
			continue
		}
		w.stalled[d] = true
		base, rot := d.Placement()
		w.auditEvent(tick, "STALL", d.Kind().String(), base, rot, "TYPE_MISMATCH", nil)
	}
}

func (w *World) installed(d device.Device) bool {
	base, _ := d.Placement()
	return w.grid.DeviceAt(base) == d
}
