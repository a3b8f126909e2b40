// Package world runs one factory network: it owns the grid, the per-kind
// speed ratios, the device registry and the goal tracker, and advances them
// one tick at a time.
package world

import (
	"fmt"
	"sync/atomic"

	"github.com/caterpillar-1/CShapeZ/internal/observerproto"
	"github.com/caterpillar-1/CShapeZ/internal/sim/device"
	"github.com/caterpillar-1/CShapeZ/internal/sim/encoding"
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/goal"
	"github.com/caterpillar-1/CShapeZ/internal/sim/grid"
	"github.com/caterpillar-1/CShapeZ/internal/sim/io/savecodec"
	"github.com/caterpillar-1/CShapeZ/internal/sim/item"
	"github.com/caterpillar-1/CShapeZ/internal/sim/terrain"
	"github.com/caterpillar-1/CShapeZ/internal/sim/tuning"
)

type WorldConfig struct {
	ID                 string
	TickRateHz         int
	GridW              int
	GridH              int
	CenterSize         int
	Seed               int64
	ResourcePermille   int
	SnapshotEveryTicks int

	BaseRates [device.KindCount]float64
	Ratios    device.Ratios
}

func ConfigFromTuning(id string, t tuning.Tuning) (WorldConfig, error) {
	ratios, err := t.InitialRatios()
	if err != nil {
		return WorldConfig{}, err
	}
	tm, err := t.Timing(nil)
	if err != nil {
		return WorldConfig{}, err
	}
	return WorldConfig{
		ID:                 id,
		TickRateHz:         t.TickRateHz,
		GridW:              t.GridW,
		GridH:              t.GridH,
		CenterSize:         t.CenterSize,
		Seed:               t.Seed,
		ResourcePermille:   t.ResourcePermille,
		SnapshotEveryTicks: t.SnapshotEveryTicks,
		BaseRates:          tm.BaseRates,
		Ratios:             ratios,
	}, nil
}

type TickLogEntry struct {
	Tick       uint64                     `json:"tick"`
	Fired      int                        `json:"fired"`
	Deliveries int                        `json:"deliveries"`
	Matched    int                        `json:"matched"`
	Commands   []observerproto.CommandMsg `json:"commands,omitempty"`
	Results    []observerproto.ResultMsg  `json:"results,omitempty"`
	Goal       []goal.Event               `json:"goal,omitempty"`
	Audits     int                        `json:"audits,omitempty"`
}

type AuditEntry struct {
	Tick     uint64         `json:"tick"`
	Action   string         `json:"action"` // e.g. "PLACE"
	Kind     string         `json:"kind,omitempty"`
	Pos      [2]int         `json:"pos"`
	Rotation int            `json:"rotation"`
	Reason   string         `json:"reason,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// Summary is a cheap digest of the world, published after every tick for
// readers outside the loop goroutine.
type Summary struct {
	WorldID    string `json:"world_id"`
	Tick       uint64 `json:"tick"`
	Devices    int    `json:"devices"`
	Stalled    int    `json:"stalled"`
	Money      int64  `json:"money"`
	ProblemSet int    `json:"problem_set"`
	Task       int    `json:"task"`
	Received   int    `json:"received"`
	Delivered  uint64 `json:"delivered"`
}

// Snapshot is an encoded save handed to the persistence goroutine.
type Snapshot struct {
	WorldID string
	Tick    uint64
	Payload []byte
	Summary Summary
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg WorldConfig

	tick atomic.Uint64

	grid     *grid.Grid
	ratios   device.Ratios
	timing   device.Timing
	registry *device.Registry
	goal     *goal.Tracker

	// Immutable after construction; safe to read from any goroutine.
	groundRLE string
	palette   []string

	inbox         chan CommandEnvelope
	admin         chan adminSnapshotReq
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	stop          chan struct{}

	observers map[string]*observerClient

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- Snapshot

	stalled   map[device.Device]bool
	delivered uint64

	// Per-tick scratch.
	auditsThisTick []AuditEntry
	deliveries     int
	matched        int

	summary atomic.Pointer[Summary]
}

// New builds a fresh network: an empty grid with the center in the middle
// and generated ground everywhere else.
func New(cfg WorldConfig) (*World, error) {
	g, err := grid.New(cfg.GridW, cfg.GridH)
	if err != nil {
		return nil, err
	}
	if _, err := g.PlaceCenter(cfg.CenterSize); err != nil {
		return nil, err
	}
	layer := terrain.Generate(cfg.GridW, cfg.GridH, cfg.Seed, cfg.ResourcePermille)
	if err := layer.Apply(g); err != nil {
		return nil, err
	}
	return newWorld(cfg, g, cfg.Ratios, goal.New(), 0)
}

// FromSave resumes a decoded save. The save's grid size wins over cfg's, and
// the tick counter continues after tick.
func FromSave(cfg WorldConfig, s *savecodec.State, tick uint64) (*World, error) {
	if s == nil || s.Grid == nil {
		return nil, fmt.Errorf("world: empty save")
	}
	if s.Grid.Center() == nil {
		return nil, fmt.Errorf("world: save has no center")
	}
	cfg.GridW, cfg.GridH = s.Grid.Size()
	cfg.CenterSize = s.Grid.Center().Size()
	tr := goal.New()
	if err := tr.Restore(s.Goal); err != nil {
		return nil, err
	}
	return newWorld(cfg, s.Grid, s.Ratios, tr, tick)
}

func newWorld(cfg WorldConfig, g *grid.Grid, ratios device.Ratios, tr *goal.Tracker, tick uint64) (*World, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("world: tick rate %d", cfg.TickRateHz)
	}
	palette := item.Resources()
	w, h := g.Size()
	cells := make([]item.Resource, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cells = append(cells, g.Ground(geom.Pos{X: x, Y: y}))
		}
	}
	ids, err := encoding.GroundIDs(cells, palette)
	if err != nil {
		return nil, err
	}

	wd := &World{
		cfg:           cfg,
		grid:          g,
		ratios:        ratios,
		registry:      device.NewRegistry(),
		goal:          tr,
		groundRLE:     encoding.EncodeRLE(ids),
		palette:       encoding.PaletteNames(palette),
		inbox:         make(chan CommandEnvelope, 256),
		admin:         make(chan adminSnapshotReq, 16),
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 16),
		observerLeave: make(chan string, 16),
		stop:          make(chan struct{}),
		observers:     map[string]*observerClient{},
		stalled:       map[device.Device]bool{},
	}
	wd.timing = device.Timing{FPS: cfg.TickRateHz, BaseRates: cfg.BaseRates, Ratios: &wd.ratios}
	for _, d := range g.Devices() {
		if d.Stalled() {
			wd.stalled[d] = true
		}
	}
	wd.tick.Store(tick)
	wd.publishSummary()
	return wd, nil
}

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) TickRateHz() int {
	if w == nil {
		return 0
	}
	return w.cfg.TickRateHz
}

func (w *World) Config() WorldConfig { return w.cfg }

// CurrentTick is the next tick to simulate.
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) SetTickLogger(l TickLogger)                         { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                       { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- Snapshot)                 { w.snapshotSink = ch }
func (w *World) Inbox() chan<- CommandEnvelope                      { return w.inbox }
func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }
func (w *World) ObserverLeave() chan<- string                       { return w.observerLeave }

// Grid exposes the network for tests and offline tools. It must not be used
// while Run is active.
func (w *World) Grid() *grid.Grid { return w.grid }

func (w *World) Goal() goal.Status { return w.goal.Status() }

func (w *World) Ratios() device.Ratios { return w.ratios }

// Summary returns the digest published after the last completed tick.
func (w *World) Summary() Summary {
	if s := w.summary.Load(); s != nil {
		return *s
	}
	return Summary{WorldID: w.cfg.ID}
}

func (w *World) Bootstrap() observerproto.BootstrapResponse {
	kinds := w.registry.Kinds()
	placeable := make([]string, 0, len(kinds))
	for _, k := range kinds {
		placeable = append(placeable, k.String())
	}
	return observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		WorldID:         w.cfg.ID,
		Tick:            w.tick.Load(),
		WorldParams: observerproto.WorldParams{
			TickRateHz: w.cfg.TickRateHz,
			GridW:      w.cfg.GridW,
			GridH:      w.cfg.GridH,
			CenterSize: w.cfg.CenterSize,
			Seed:       w.cfg.Seed,
		},
		Ground:    observerproto.GroundLayer{Encoding: observerproto.GroundEncoding, Data: w.groundRLE},
		Palette:   append([]string(nil), w.palette...),
		Placeable: placeable,
	}
}

func (w *World) publishSummary() {
	s := Summary{
		WorldID:   w.cfg.ID,
		Tick:      w.tick.Load(),
		Devices:   w.grid.Len(),
		Stalled:   len(w.stalled),
		Delivered: w.delivered,
	}
	st := w.goal.Status()
	s.Money, s.ProblemSet, s.Task, s.Received = st.Money, st.ProblemSet, st.Task, st.Received
	w.summary.Store(&s)
}

// worldEnv is what devices see of the world while they fire.
type worldEnv struct{ w *World }

func (e worldEnv) Ground(p geom.Pos) item.Resource { return e.w.grid.Ground(p) }

func (e worldEnv) Deliver(it item.Item) {
	e.w.deliveries++
	e.w.delivered++
	if e.w.goal.Deliver(it) {
		e.w.matched++
	}
}
