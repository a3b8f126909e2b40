package world

import (
	"context"
	"time"

	"github.com/caterpillar-1/CShapeZ/internal/observerproto"
)

// CommandEnvelope carries one client command into the loop. Resp, if set,
// receives the result once the command is applied at the next tick boundary.
type CommandEnvelope struct {
	Cmd  observerproto.CommandMsg
	Resp chan observerproto.ResultMsg
}

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingCmds []CommandEnvelope
	var pendingAdmin []adminSnapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case env := <-w.inbox:
			pendingCmds = append(pendingCmds, env)
		case <-ticker.C:
			w.step(pendingCmds)
			w.handleAdminSnapshotRequests(pendingAdmin)
			pendingCmds = pendingCmds[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering
// semantics as Run. It is intended for deterministic replays and tests.
func (w *World) StepOnce(cmds []observerproto.CommandMsg) (tick uint64, results []observerproto.ResultMsg) {
	envs := make([]CommandEnvelope, len(cmds))
	for i, c := range cmds {
		envs[i] = CommandEnvelope{Cmd: c}
	}
	tick = w.tick.Load()
	return tick, w.step(envs)
}

// step applies queued commands, then runs every device in registration order.
func (w *World) step(cmds []CommandEnvelope) []observerproto.ResultMsg {
	nowTick := w.tick.Load()
	w.auditsThisTick = w.auditsThisTick[:0]
	w.deliveries, w.matched = 0, 0

	results := make([]observerproto.ResultMsg, 0, len(cmds))
	for _, env := range cmds {
		r := w.apply(nowTick, env.Cmd)
		results = append(results, r)
		if env.Resp != nil {
			select {
			case env.Resp <- r:
			default:
				// Client gave up; don't block the sim loop.
			}
		}
	}

	fired := w.grid.Advance(w.timing, worldEnv{w})
	w.checkStalls(nowTick)
	events := w.goal.DrainEvents()

	if w.tickLogger != nil && (len(results) > 0 || w.deliveries > 0 || len(events) > 0 || len(w.auditsThisTick) > 0) {
		applied := make([]observerproto.CommandMsg, len(cmds))
		for i, env := range cmds {
			applied[i] = env.Cmd
		}
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:       nowTick,
			Fired:      fired,
			Deliveries: w.deliveries,
			Matched:    w.matched,
			Commands:   applied,
			Results:    results,
			Goal:       events,
			Audits:     len(w.auditsThisTick),
		})
	}
	w.stepObservers(nowTick, fired, events)

	w.tick.Add(1)
	w.publishSummary()
	if n := w.cfg.SnapshotEveryTicks; n > 0 && (nowTick+1)%uint64(n) == 0 {
		w.enqueueSnapshot(nowTick)
	}
	return results
}
