// Package instrument
package instrument

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Kind string

const (
	KindFX        Kind = "fx"
	KindIndex     Kind = "index"
	KindCommodity Kind = "commodity"
)

// Instrument is static reference data for a tradable symbol. Loaded once per
// run and treated as immutable.
type Instrument struct {
	Symbol     string  `yaml:"symbol"`
	Kind       Kind    `yaml:"kind"`
	MinStep    float64 `yaml:"min_step"`    // tick size
	PipValue   float64 `yaml:"pip_value"`   // account currency per pip, fx only
	PointValue float64 `yaml:"point_value"` // account currency per point
	LotStep    float64 `yaml:"lot_step"`
	MinLot     float64 `yaml:"min_lot"`
	Leverage   float64 `yaml:"leverage"`
	Margin     float64 `yaml:"margin_requirement"`
	HasVolume  bool    `yaml:"has_volume"`  // false for fx feeds without volume
	DataSymbol string  `yaml:"data_symbol"` // symbol at the market data source
}

// Validate reports missing required fields.
func (i Instrument) Validate() error {
	if i.Symbol == "" {
		return fmt.Errorf("instrument symbol is empty")
	}
	switch i.Kind {
	case KindFX, KindIndex, KindCommodity:
	default:
		return fmt.Errorf("instrument %s: unknown kind %q", i.Symbol, i.Kind)
	}
	if i.MinStep <= 0 {
		return fmt.Errorf("instrument %s: min_step must be positive", i.Symbol)
	}
	if i.Kind == KindFX && i.PipValue <= 0 {
		return fmt.Errorf("instrument %s: pip_value must be positive for fx", i.Symbol)
	}
	if i.Kind != KindFX && i.PointValue <= 0 {
		return fmt.Errorf("instrument %s: point_value must be positive", i.Symbol)
	}
	return nil
}

// LoadFile reads instrument definitions from a YAML file keyed by symbol.
func LoadFile(path string) (map[string]Instrument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instruments file: %w", err)
	}
	var raw struct {
		Instruments []Instrument `yaml:"instruments"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse instruments file: %w", err)
	}
	out := make(map[string]Instrument, len(raw.Instruments))
	for _, inst := range raw.Instruments {
		if err := inst.Validate(); err != nil {
			return nil, err
		}
		out[inst.Symbol] = inst
	}
	return out, nil
}
