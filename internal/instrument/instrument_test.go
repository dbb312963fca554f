package instrument

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validIndex() Instrument {
	return Instrument{
		Symbol:     "US500",
		Kind:       KindIndex,
		MinStep:    0.25,
		PointValue: 1,
		LotStep:    0.1,
		MinLot:     0.1,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validIndex().Validate())

	t.Run("empty symbol", func(t *testing.T) {
		i := validIndex()
		i.Symbol = ""
		assert.Error(t, i.Validate())
	})

	t.Run("unknown kind", func(t *testing.T) {
		i := validIndex()
		i.Kind = "crypto"
		assert.Error(t, i.Validate())
	})

	t.Run("non-positive min step", func(t *testing.T) {
		i := validIndex()
		i.MinStep = 0
		assert.Error(t, i.Validate())
	})

	t.Run("fx needs pip value", func(t *testing.T) {
		i := Instrument{Symbol: "EURUSD", Kind: KindFX, MinStep: 0.0001}
		assert.ErrorContains(t, i.Validate(), "pip_value")
		i.PipValue = 10
		assert.NoError(t, i.Validate())
	})

	t.Run("index needs point value", func(t *testing.T) {
		i := validIndex()
		i.PointValue = 0
		assert.ErrorContains(t, i.Validate(), "point_value")
	})
}

func TestLoadFile(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "instruments.yaml")
		data := `instruments:
  - symbol: US500
    kind: index
    min_step: 0.25
    point_value: 1
    lot_step: 0.1
    min_lot: 0.1
    has_volume: true
    data_symbol: "^spx"
  - symbol: EURUSD
    kind: fx
    min_step: 0.0001
    pip_value: 10
    lot_step: 0.01
    min_lot: 0.01
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		got, err := LoadFile(path)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, KindIndex, got["US500"].Kind)
		assert.Equal(t, "^spx", got["US500"].DataSymbol)
		assert.True(t, got["US500"].HasVolume)
		assert.Equal(t, 10.0, got["EURUSD"].PipValue)
	})

	t.Run("invalid instrument rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "instruments.yaml")
		data := `instruments:
  - symbol: BROKEN
    kind: index
    min_step: 0
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
		_, err := LoadFile(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile("/nonexistent/instruments.yaml")
		assert.Error(t, err)
	})
}
