// Package macro implements the no-trade guard around scheduled
// macroeconomic events and outside market hours.
package macro

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"cfd-signals/internal/instrument"
)

// Event is a scheduled macro release at an exact UTC timestamp.
type Event struct {
	Name   string    `yaml:"name"`
	Time   time.Time `yaml:"time"`
	Impact string    `yaml:"impact"` // high, medium, low
}

// Calendar holds the loaded event list. Stateless; every check is computed
// from the list.
type Calendar struct {
	Events []Event
}

// LoadCalendar reads macro events from a YAML file.
func LoadCalendar(path string) (*Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read macro calendar: %w", err)
	}
	var raw struct {
		Events []Event `yaml:"events"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse macro calendar: %w", err)
	}
	return &Calendar{Events: raw.Events}, nil
}

// IsBlocked reports whether now falls within [event-before, event+after] of
// any event, along with the blocking event's name.
func (c *Calendar) IsBlocked(now time.Time, before, after time.Duration) (bool, string) {
	for _, ev := range c.Events {
		start := ev.Time.Add(-before)
		end := ev.Time.Add(after)
		if !now.Before(start) && !now.After(end) {
			return true, ev.Name
		}
	}
	return false, ""
}

// TradingAllowed combines the event window with a weekend guard: CFD/FX
// underlyings do not trade on Saturday or Sunday.
func (c *Calendar) TradingAllowed(now time.Time, inst instrument.Instrument, before, after time.Duration) (bool, string) {
	switch now.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return false, "market closed (weekend)"
	}
	if blocked, name := c.IsBlocked(now, before, after); blocked {
		return false, fmt.Sprintf("macro event window: %s", name)
	}
	return true, fmt.Sprintf("no macro event within %s", before)
}
