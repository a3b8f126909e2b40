// Package goal tracks delivery targets at the Center and the economy that
// rewards meeting them.
package goal

import (
	"errors"
	"fmt"
	"math"

	"github.com/caterpillar-1/CShapeZ/internal/sim/device"
	"github.com/caterpillar-1/CShapeZ/internal/sim/geom"
	"github.com/caterpillar-1/CShapeZ/internal/sim/item"
)

var (
	ErrInsufficientFunds = errors.New("goal: insufficient money")
	ErrAtCap             = errors.New("goal: already at the cap")
	ErrNoEnhance         = errors.New("goal: no enhancement points")
	ErrBadState          = errors.New("goal: state out of range")
)

const (
	RewardPerItem = 10

	MoneyRatioCost  = 1000
	DeviceRatioCost = 4000
	UpgradeStep     = 0.1
	EnhanceStep     = 0.5
	MaxMoneyRatio   = 4.0
)

// Target is one task of a problem set: deliver Required mines equal to Mine().
type Target struct {
	Kind     item.Kind
	Extent   item.Extent
	Trait    item.Trait
	Required int
}

func (t Target) Mine() item.Mine {
	return item.Mine{Kind: t.Kind, Extent: t.Extent, Orientation: geom.R0, Trait: t.Trait}
}

// Levels lists the problem sets in play order. After the last set the
// tracker wraps around to the first one.
var Levels = [][]Target{
	// Miner, Belt and Cutter.
	{
		{item.Square, item.Full, item.Black, 20},
		{item.Round, item.Full, item.Black, 30},
		{item.Square, item.Half, item.Black, 50},
	},
	// Mixer and Rotator.
	{
		{item.Round, item.Full, item.Red, 20},
		{item.Square, item.Quarter, item.Blue, 40},
		{item.Square, item.Half, item.Blue, 80},
	},
	{
		{item.Round, item.Half, item.Black, 10},
		{item.Square, item.Quarter, item.Blue, 20},
		{item.Round, item.Full, item.Red, 80},
	},
}

type EventKind string

const (
	EventTaskDone  EventKind = "TASK_DONE"
	EventSetDone   EventKind = "SET_DONE"
	EventUpgrade   EventKind = "UPGRADE"
	EventEnhance   EventKind = "ENHANCE"
	EventMoneyRate EventKind = "MONEY_RATIO"
)

type Event struct {
	Kind       EventKind `json:"kind"`
	ProblemSet int       `json:"problem_set"`
	Task       int       `json:"task"`
	Credit     int64     `json:"credit,omitempty"`
	Money      int64     `json:"money"`
	Device     string    `json:"device,omitempty"`
	Ratio      float64   `json:"ratio,omitempty"`
}

// State is the persisted form of a Tracker.
type State struct {
	ProblemSet int
	Task       int
	Received   int
	Money      int64
	MoneyRatio float64
	Enhance    int
}

// Status is a read-only view for observers.
type Status struct {
	ProblemSet int     `json:"problem_set"`
	Task       int     `json:"task"`
	Received   int     `json:"received"`
	Required   int     `json:"required"`
	Target     string  `json:"target"`
	Money      int64   `json:"money"`
	MoneyRatio float64 `json:"money_ratio"`
	Enhance    int     `json:"enhance"`
}

type Tracker struct {
	problemSet int
	task       int
	received   int

	money      int64
	moneyRatio float64
	enhance    int

	events []Event
}

func New() *Tracker {
	return &Tracker{moneyRatio: 1.0}
}

func (t *Tracker) target() Target { return Levels[t.problemSet][t.task] }

func (t *Tracker) Status() Status {
	tg := t.target()
	return Status{
		ProblemSet: t.problemSet,
		Task:       t.task,
		Received:   t.received,
		Required:   tg.Required,
		Target:     tg.Mine().String(),
		Money:      t.money,
		MoneyRatio: t.moneyRatio,
		Enhance:    t.enhance,
	}
}

func (t *Tracker) Money() int64 { return t.money }

// Deliver accepts an item that reached the Center. It reports whether the
// item counted toward the current task.
func (t *Tracker) Deliver(it item.Item) bool {
	m, ok := it.(item.Mine)
	if !ok || !m.Same(t.target().Mine()) {
		return false
	}
	t.received++
	tg := t.target()
	if t.received < tg.Required {
		return true
	}

	credit := int64(math.Round(float64(tg.Required*RewardPerItem*(t.problemSet+1)) * t.moneyRatio))
	t.money += credit
	t.events = append(t.events, Event{
		Kind: EventTaskDone, ProblemSet: t.problemSet, Task: t.task, Credit: credit, Money: t.money,
	})

	t.received = 0
	t.task++
	if t.task == len(Levels[t.problemSet]) {
		t.events = append(t.events, Event{Kind: EventSetDone, ProblemSet: t.problemSet, Money: t.money})
		t.enhance++
		t.task = 0
		t.problemSet = (t.problemSet + 1) % len(Levels)
	}
	return true
}

// DrainEvents returns and clears events accumulated since the last call.
func (t *Tracker) DrainEvents() []Event {
	out := t.events
	t.events = nil
	return out
}

func roundTenth(v float64) float64 { return math.Round(v*10) / 10 }

// UpgradeMoneyRatio raises the reward multiplier by one step.
func (t *Tracker) UpgradeMoneyRatio() error {
	if t.moneyRatio >= MaxMoneyRatio {
		return ErrAtCap
	}
	if t.money < MoneyRatioCost {
		return fmt.Errorf("%w: have %d need %d", ErrInsufficientFunds, t.money, MoneyRatioCost)
	}
	t.money -= MoneyRatioCost
	t.moneyRatio = math.Min(roundTenth(t.moneyRatio+UpgradeStep), MaxMoneyRatio)
	t.events = append(t.events, Event{Kind: EventMoneyRate, Money: t.money, Ratio: t.moneyRatio})
	return nil
}

// UpgradeDevice buys one step of speed for every device of kind k.
func (t *Tracker) UpgradeDevice(k device.Kind, ratios *device.Ratios) error {
	next, err := t.raise(k, ratios, UpgradeStep)
	if err != nil {
		return err
	}
	if t.money < DeviceRatioCost {
		return fmt.Errorf("%w: have %d need %d", ErrInsufficientFunds, t.money, DeviceRatioCost)
	}
	if err := ratios.Set(k, next); err != nil {
		return err
	}
	t.money -= DeviceRatioCost
	t.events = append(t.events, Event{Kind: EventUpgrade, Money: t.money, Device: k.String(), Ratio: next})
	return nil
}

// Enhance spends an enhancement point, earned by finishing a problem set, on kind k.
func (t *Tracker) Enhance(k device.Kind, ratios *device.Ratios) error {
	if t.enhance <= 0 {
		return ErrNoEnhance
	}
	next, err := t.raise(k, ratios, EnhanceStep)
	if err != nil {
		return err
	}
	if err := ratios.Set(k, next); err != nil {
		return err
	}
	t.enhance--
	t.events = append(t.events, Event{Kind: EventEnhance, Money: t.money, Device: k.String(), Ratio: next})
	return nil
}

func (t *Tracker) raise(k device.Kind, ratios *device.Ratios, step float64) (float64, error) {
	if ratios == nil || !k.Valid() {
		return 0, fmt.Errorf("%w: %d", device.ErrUnknownKind, k)
	}
	cur := ratios.Get(k)
	if cur >= device.MaxRatio {
		return 0, fmt.Errorf("%w: %s ratio %.1f", ErrAtCap, k, cur)
	}
	return math.Min(roundTenth(cur+step), device.MaxRatio), nil
}

func (t *Tracker) Snapshot() State {
	return State{
		ProblemSet: t.problemSet,
		Task:       t.task,
		Received:   t.received,
		Money:      t.money,
		MoneyRatio: t.moneyRatio,
		Enhance:    t.enhance,
	}
}

// Restore replaces the tracker's progress. Out-of-range progress is rejected
// and leaves the tracker untouched.
func (t *Tracker) Restore(s State) error {
	if s.ProblemSet < 0 || s.ProblemSet >= len(Levels) {
		return fmt.Errorf("%w: problem set %d", ErrBadState, s.ProblemSet)
	}
	if s.Task < 0 || s.Task >= len(Levels[s.ProblemSet]) {
		return fmt.Errorf("%w: task %d", ErrBadState, s.Task)
	}
	if s.Received < 0 || s.Received >= Levels[s.ProblemSet][s.Task].Required {
		return fmt.Errorf("%w: received %d", ErrBadState, s.Received)
	}
	if s.Enhance < 0 || math.IsNaN(s.MoneyRatio) || s.MoneyRatio <= 0 || s.MoneyRatio > MaxMoneyRatio {
		return fmt.Errorf("%w: enhance %d money ratio %v", ErrBadState, s.Enhance, s.MoneyRatio)
	}
	t.problemSet, t.task, t.received = s.ProblemSet, s.Task, s.Received
	t.money, t.moneyRatio, t.enhance = s.Money, s.MoneyRatio, s.Enhance
	t.events = nil
	return nil
}
