package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/caterpillar-1/CShapeZ/internal/sim/world"
)

type snapshotRequester interface {
	Summary() world.Summary
	RequestSnapshot(ctx context.Context) (uint64, error)
}

// registerAdmin adds the local-only admin endpoints.
func registerAdmin(mux *http.ServeMux, w snapshotRequester, idx runtimeIndex) {
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		resp := struct {
			Summary world.Summary `json:"summary"`
			Index   any           `json:"index,omitempty"`
		}{Summary: w.Summary()}
		if idx != nil {
			resp.Index = idx.Stats()
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		tick, err := w.RequestSnapshot(ctx2)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
	})
}

// writeMetrics renders the summary in the Prometheus text format.
func writeMetrics(out io.Writer, s world.Summary, idx runtimeIndex) {
	gauge := func(name, help string, v any) {
		fmt.Fprintf(out, "# HELP cshapez_%s %s\n", name, help)
		fmt.Fprintf(out, "# TYPE cshapez_%s gauge\n", name)
		fmt.Fprintf(out, "cshapez_%s{world=%q} %v\n", name, s.WorldID, v)
	}
	gauge("world_tick", "Next tick to simulate.", s.Tick)
	gauge("world_devices", "Installed devices including the center.", s.Devices)
	gauge("world_stalled_devices", "Devices stalled on a type mismatch.", s.Stalled)
	gauge("world_money", "Money available for upgrades.", s.Money)
	gauge("world_problem_set", "Current problem set.", s.ProblemSet)
	gauge("world_task", "Current task within the problem set.", s.Task)
	gauge("world_task_received", "Matching items received for the current task.", s.Received)

	fmt.Fprintf(out, "# HELP cshapez_world_delivered_total Items delivered to the center.\n")
	fmt.Fprintf(out, "# TYPE cshapez_world_delivered_total counter\n")
	fmt.Fprintf(out, "cshapez_world_delivered_total{world=%q} %d\n", s.WorldID, s.Delivered)

	if idx == nil {
		return
	}
	st := idx.Stats()
	fmt.Fprintf(out, "# HELP cshapez_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(out, "# TYPE cshapez_index_queue_depth gauge\n")
	fmt.Fprintf(out, "cshapez_index_queue_depth{world=%q} %d\n", s.WorldID, st.QueueDepth)
	fmt.Fprintf(out, "# HELP cshapez_index_dropped_total Index writes dropped under backpressure.\n")
	fmt.Fprintf(out, "# TYPE cshapez_index_dropped_total counter\n")
	fmt.Fprintf(out, "cshapez_index_dropped_total{world=%q,kind=\"tick\"} %d\n", s.WorldID, st.DropTickTotal)
	fmt.Fprintf(out, "cshapez_index_dropped_total{world=%q,kind=\"audit\"} %d\n", s.WorldID, st.DropAuditTotal)
	fmt.Fprintf(out, "cshapez_index_dropped_total{world=%q,kind=\"snapshot\"} %d\n", s.WorldID, st.DropSnapshotTotal)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
