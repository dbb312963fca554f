package macro

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfd-signals/internal/instrument"
)

func TestIsBlocked(t *testing.T) {
	event := time.Date(2025, 6, 6, 14, 30, 0, 0, time.UTC) // NFP Friday
	cal := &Calendar{Events: []Event{{Name: "Non-Farm Payrolls", Time: event, Impact: "high"}}}
	before, after := 30*time.Minute, 30*time.Minute

	t.Run("inside window", func(t *testing.T) {
		blocked, name := cal.IsBlocked(event.Add(-10*time.Minute), before, after)
		assert.True(t, blocked)
		assert.Equal(t, "Non-Farm Payrolls", name)
		blocked, _ = cal.IsBlocked(event.Add(10*time.Minute), before, after)
		assert.True(t, blocked)
	})

	t.Run("window bounds are inclusive", func(t *testing.T) {
		blocked, _ := cal.IsBlocked(event.Add(-30*time.Minute), before, after)
		assert.True(t, blocked)
		blocked, _ = cal.IsBlocked(event.Add(30*time.Minute), before, after)
		assert.True(t, blocked)
	})

	t.Run("just outside window", func(t *testing.T) {
		blocked, _ := cal.IsBlocked(event.Add(-31*time.Minute), before, after)
		assert.False(t, blocked)
		blocked, _ = cal.IsBlocked(event.Add(31*time.Minute), before, after)
		assert.False(t, blocked)
	})

	t.Run("empty calendar never blocks", func(t *testing.T) {
		empty := &Calendar{}
		blocked, _ := empty.IsBlocked(event, before, after)
		assert.False(t, blocked)
	})
}

func TestTradingAllowed(t *testing.T) {
	cal := &Calendar{}
	inst := instrument.Instrument{Symbol: "US500"}

	t.Run("weekend blocked", func(t *testing.T) {
		saturday := time.Date(2025, 6, 7, 12, 0, 0, 0, time.UTC)
		allowed, reason := cal.TradingAllowed(saturday, inst, time.Minute, time.Minute)
		assert.False(t, allowed)
		assert.Equal(t, "market closed (weekend)", reason)

		sunday := saturday.Add(24 * time.Hour)
		allowed, _ = cal.TradingAllowed(sunday, inst, time.Minute, time.Minute)
		assert.False(t, allowed)
	})

	t.Run("weekday with no events allowed", func(t *testing.T) {
		monday := time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC)
		allowed, reason := cal.TradingAllowed(monday, inst, 30*time.Minute, 30*time.Minute)
		assert.True(t, allowed)
		assert.Contains(t, reason, "no macro event")
	})

	t.Run("event window blocks weekday", func(t *testing.T) {
		event := time.Date(2025, 6, 9, 14, 30, 0, 0, time.UTC)
		busy := &Calendar{Events: []Event{{Name: "FOMC", Time: event, Impact: "high"}}}
		allowed, reason := busy.TradingAllowed(event, inst, 30*time.Minute, 30*time.Minute)
		assert.False(t, allowed)
		assert.Contains(t, reason, "FOMC")
	})
}

func TestLoadCalendar(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "macro.yaml")
		data := `events:
  - name: "CPI Release"
    time: 2025-06-11T12:30:00Z
    impact: high
  - name: "ECB Rate Decision"
    time: 2025-06-12T11:45:00Z
    impact: high
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		cal, err := LoadCalendar(path)
		require.NoError(t, err)
		require.Len(t, cal.Events, 2)
		assert.Equal(t, "CPI Release", cal.Events[0].Name)
		assert.Equal(t, time.Date(2025, 6, 11, 12, 30, 0, 0, time.UTC), cal.Events[0].Time.UTC())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCalendar("/nonexistent/macro.yaml")
		assert.Error(t, err)
	})
}
