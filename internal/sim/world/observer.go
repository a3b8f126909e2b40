package world

import (
	"encoding/json"

	"github.com/caterpillar-1/CShapeZ/internal/observerproto"
	"github.com/caterpillar-1/CShapeZ/internal/sim/device"
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/goal"
)

// ObserverJoinRequest registers a session that receives one TICK message per
// tick on TickOut. The world closes TickOut when the session leaves.
type ObserverJoinRequest struct {
	SessionID string
	TickOut   chan []byte
	Devices   bool
}

// ObserverSubscribeRequest updates an existing session's settings.
type ObserverSubscribeRequest struct {
	SessionID string
	Devices   bool
}

type observerClient struct {
	id      string
	tickOut chan []byte
	devices bool
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		return
	}
	if old := w.observers[req.SessionID]; old != nil {
		close(old.tickOut)
	}
	w.observers[req.SessionID] = &observerClient{id: req.SessionID, tickOut: req.TickOut, devices: req.Devices}
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	if c := w.observers[req.SessionID]; c != nil {
		c.devices = req.Devices
	}
}

func (w *World) handleObserverLeave(sessionID string) {
	c := w.observers[sessionID]
	if c == nil {
		return
	}
	delete(w.observers, sessionID)
	close(c.tickOut)
}

func (w *World) stepObservers(nowTick uint64, fired int, events []goal.Event) {
	if len(w.observers) == 0 {
		return
	}
	msg := w.tickMsg(nowTick, fired, events)
	var plain, full []byte
	for _, c := range w.observers {
		var b []byte
		if c.devices {
			if full == nil {
				m := msg
				m.Devices = w.deviceStates()
				full, _ = json.Marshal(m)
			}
			b = full
		} else {
			if plain == nil {
				plain, _ = json.Marshal(msg)
			}
			b = plain
		}
		sendLatest(c.tickOut, b)
	}
}

func (w *World) tickMsg(nowTick uint64, fired int, events []goal.Event) observerproto.TickMsg {
	st := w.goal.Status()
	msg := observerproto.TickMsg{
		Type:            observerproto.TypeTick,
		ProtocolVersion: observerproto.Version,
		Tick:            nowTick,
		Fired:           fired,
		Deliveries:      w.deliveries,
		Matched:         w.matched,
		Goal: observerproto.GoalState{
			ProblemSet: st.ProblemSet,
			Task:       st.Task,
			Received:   st.Received,
			Required:   st.Required,
			Target:     st.Target,
			Money:      st.Money,
			MoneyRatio: st.MoneyRatio,
			Enhance:    st.Enhance,
		},
	}
	for _, k := range device.Kinds {
		msg.Ratios = append(msg.Ratios, observerproto.KindRatio{Kind: k.String(), Ratio: w.ratios.Get(k), Period: w.timing.Period(k)})
	}
	for _, e := range events {
		msg.Events = append(msg.Events, observerproto.GoalEvent{
			Kind:       string(e.Kind),
			ProblemSet: e.ProblemSet,
			Task:       e.Task,
			Credit:     e.Credit,
			Money:      e.Money,
			Device:     e.Device,
			Ratio:      e.Ratio,
		})
	}
	for _, a := range w.auditsThisTick {
		msg.Audits = append(msg.Audits, observerproto.AuditEntry{
			Tick: a.Tick, Action: a.Action, Kind: a.Kind, Pos: a.Pos, Rotation: a.Rotation, Reason: a.Reason,
		})
	}
	return msg
}

func (w *World) deviceStates() []observerproto.DeviceState {
	devs := w.grid.Devices()
	out := make([]observerproto.DeviceState, 0, len(devs))
	for _, d := range devs {
		base, rot := d.Placement()
		ds := observerproto.DeviceState{
			Kind:     d.Kind().String(),
			Pos:      base.ToArray(),
			Rotation: int(rot),
			Stalled:  d.Stalled(),
		}
		for _, off := range d.Footprint() {
			ds.Cells = append(ds.Cells, geom.MapToGrid(off, base, rot).ToArray())
		}
		if b, ok := d.(*device.Belt); ok {
			for _, it := range b.Slots() {
				if it == nil {
					ds.Items = append(ds.Items, "")
				} else {
					ds.Items = append(ds.Items, it.String())
				}
			}
		}
		out = append(out, ds)
	}
	return out
}

// sendLatest delivers b, dropping the oldest queued message if ch is full.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
