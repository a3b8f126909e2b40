// Package tuning loads the simulation parameters from YAML.
package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/caterpillar-1/CShapeZ/internal/sim/device"
)

//go:embed tuning.schema.json
var schemaJSON string

var ErrInvalid = errors.New("tuning: invalid")

type Tuning struct {
	TickRateHz         int   `yaml:"tick_rate_hz" json:"tick_rate_hz"`
	GridW              int   `yaml:"grid_w" json:"grid_w"`
	GridH              int   `yaml:"grid_h" json:"grid_h"`
	CenterSize         int   `yaml:"center_size" json:"center_size"`
	Seed               int64 `yaml:"seed" json:"seed"`
	ResourcePermille   int   `yaml:"resource_permille" json:"resource_permille"`
	SnapshotEveryTicks int   `yaml:"snapshot_every_ticks" json:"snapshot_every_ticks"`

	// Keyed by kind name (MINER, BELT, ...). Missing kinds keep their defaults.
	BaseRates map[string]float64 `yaml:"base_rates" json:"base_rates,omitempty"`
	Ratios    map[string]float64 `yaml:"ratios" json:"ratios,omitempty"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:         60,
		GridW:              32,
		GridH:              32,
		CenterSize:         device.DefaultCenterSize,
		Seed:               1337,
		ResourcePermille:   350,
		SnapshotEveryTicks: 3600,
	}
}

var (
	schemaOnce sync.Once
	compiled   *jsonschema.Schema
	compileErr error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiled, compileErr = jsonschema.CompileString("tuning.schema.json", schemaJSON)
	})
	return compiled, compileErr
}

// Load reads path, validates it against the embedded schema and overlays it
// on Defaults.
func Load(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Tuning, error) {
	t := Defaults()

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if doc != nil {
		if err := validateDoc(doc); err != nil {
			return t, err
		}
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func validateDoc(doc any) error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("tuning schema: %w", err)
	}
	// Round-trip through JSON so numbers reach the validator as json.Number.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Validate checks the cross-field constraints the schema cannot express.
func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("%w: tick_rate_hz %d", ErrInvalid, t.TickRateHz)
	}
	if t.GridW <= 0 || t.GridH <= 0 {
		return fmt.Errorf("%w: grid %dx%d", ErrInvalid, t.GridW, t.GridH)
	}
	if t.CenterSize <= 0 || t.CenterSize > t.GridW || t.CenterSize > t.GridH {
		return fmt.Errorf("%w: center_size %d on a %dx%d grid", ErrInvalid, t.CenterSize, t.GridW, t.GridH)
	}
	if _, err := t.rates(); err != nil {
		return err
	}
	var r device.Ratios
	return t.applyRatios(&r)
}

func (t Tuning) rates() ([device.KindCount]float64, error) {
	out := device.DefaultBaseRates()
	for _, name := range sortedKeys(t.BaseRates) {
		k, ok := device.ParseKind(name)
		if !ok {
			return out, fmt.Errorf("%w: base_rates: %w: %s", ErrInvalid, device.ErrUnknownKind, name)
		}
		v := t.BaseRates[name]
		if v < 0 {
			return out, fmt.Errorf("%w: base_rates.%s=%v", ErrInvalid, name, v)
		}
		out[k] = v
	}
	return out, nil
}

func (t Tuning) applyRatios(r *device.Ratios) error {
	r.Reset()
	for _, name := range sortedKeys(t.Ratios) {
		k, ok := device.ParseKind(name)
		if !ok {
			return fmt.Errorf("%w: ratios: %w: %s", ErrInvalid, device.ErrUnknownKind, name)
		}
		if err := r.Set(k, t.Ratios[name]); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	return nil
}

// InitialRatios returns the ratio table a fresh network starts with.
func (t Tuning) InitialRatios() (device.Ratios, error) {
	var r device.Ratios
	err := t.applyRatios(&r)
	return r, err
}

// Timing builds the period calculator for a ratio table owned by the caller.
func (t Tuning) Timing(r *device.Ratios) (device.Timing, error) {
	rates, err := t.rates()
	if err != nil {
		return device.Timing{}, err
	}
	return device.Timing{FPS: t.TickRateHz, BaseRates: rates, Ratios: r}, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
