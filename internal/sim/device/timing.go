package device

import (
	"fmt"
	"math"
)

const (
	MinRatio     = 0.5
	MaxRatio     = 4.0
	DefaultRatio = 1.0
)

// Ratios scales the base rate of each kind. It belongs to a single
// simulation instance.
type Ratios [KindCount]float64

func DefaultRatios() Ratios {
	var r Ratios
	r.Reset()
	return r
}

func (r *Ratios) Reset() {
	for i := range r {
		r[i] = DefaultRatio
	}
}

func (r Ratios) Get(k Kind) float64 {
	if !k.Valid() {
		return 0
	}
	return r[k]
}

func (r *Ratios) Set(k Kind, v float64) error {
	if !k.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownKind, k)
	}
	if math.IsNaN(v) || v < MinRatio || v > MaxRatio {
		return fmt.Errorf("%w: %s=%v", ErrBadRatio, k, v)
	}
	r[k] = v
	return nil
}

// DefaultBaseRates are operations per second at ratio 1.0.
func DefaultBaseRates() [KindCount]float64 {
	return [KindCount]float64{
		KindMiner:   0.5,
		KindBelt:    1,
		KindCutter:  1,
		KindMixer:   1,
		KindRotator: 1,
		KindTrash:   60,
		KindCenter:  60,
	}
}

// Timing turns rates into firing periods measured in ticks.
type Timing struct {
	FPS       int
	BaseRates [KindCount]float64
	Ratios    *Ratios
}

// Period returns ceil(FPS / (base rate * ratio)), or 0 when k never fires.
func (t Timing) Period(k Kind) int {
	if !k.Valid() || t.FPS <= 0 {
		return 0
	}
	ratio := DefaultRatio
	if t.Ratios != nil {
		ratio = t.Ratios.Get(k)
	}
	rate := t.BaseRates[k] * ratio
	if rate <= 0 || math.IsNaN(rate) {
		return 0
	}
	f := math.Ceil(float64(t.FPS) / rate)
	if math.IsInf(f, 0) || f >= math.MaxInt32 {
		return 0
	}
	p := int(f)
	if p < 1 {
		p = 1
	}
	return p
}
