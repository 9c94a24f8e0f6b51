package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigJSONOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, "match.json", `{"pipe_count":3,"double_cost":7,"time_to_run":2.5}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.PipeCount)
	assert.Equal(t, Score(7), cfg.DoubleCost)
	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultConfig().SlowCost, cfg.SlowCost)
	assert.Equal(t, DefaultConfig().MaxValue, cfg.MaxValue)

	duration, ok := cfg.RunDuration()
	require.True(t, ok)
	assert.Equal(t, 2500*time.Millisecond, duration)
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfigFile(t, "match.yaml", "pipe_count: 4\nmin_value: 10\nmax_delay_secs: 1.5\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.PipeCount)
	assert.Equal(t, Score(10), cfg.MinValue)
	assert.Equal(t, 1.5, cfg.MaxDelaySecs)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadConfigMalformed(t *testing.T) {
	path := writeConfigFile(t, "broken.json", `{"pipe_count":`)
	_, err := LoadConfig(path)
	require.ErrorContains(t, err, "parse")
}

func TestRunDurationUnsetByDefault(t *testing.T) {
	_, ok := DefaultConfig().RunDuration()
	assert.False(t, ok)
}

func TestModifierCostAndUses(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, cfg.SlowCost, cfg.ModifierCost(ModifierSlow))
	assert.Equal(t, cfg.DoubleCost, cfg.ModifierCost(ModifierDouble))
	assert.Equal(t, cfg.MinCost, cfg.ModifierCost(ModifierMin))
	assert.Equal(t, cfg.ShuffleCost, cfg.ModifierCost(ModifierShuffle))
	assert.Equal(t, cfg.ReverseCost, cfg.ModifierCost(ModifierReverse))

	assert.Equal(t, cfg.SlowUses, cfg.ModifierUses(ModifierSlow))
	assert.Equal(t, cfg.DoubleUses, cfg.ModifierUses(ModifierDouble))
	assert.Equal(t, cfg.MinUses, cfg.ModifierUses(ModifierMin))
	// One-shot kinds carry no use-counter.
	assert.Zero(t, cfg.ModifierUses(ModifierShuffle))
	assert.Zero(t, cfg.ModifierUses(ModifierReverse))
}

func TestRandomPipeValueStaysInBounds(t *testing.T) {
	cfg := testConfig()
	e := newTestEngine(cfg)
	for i := 0; i < 100; i++ {
		value := cfg.randomPipeValue(e.rng)
		require.GreaterOrEqual(t, value, cfg.MinValue)
		require.LessOrEqual(t, value, cfg.MaxValue)
	}
}
