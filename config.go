package server

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Score is the unit of both pipe values and player balances.
type Score = int64

// Config is the immutable match configuration, loaded once before the
// match starts. Field names follow the wire format used by config files
// and the game log.
type Config struct {
	ReverseCost Score `json:"reverse_cost" yaml:"reverse_cost"`
	DoubleCost  Score `json:"double_cost" yaml:"double_cost"`
	DoubleUses  int   `json:"double_uses" yaml:"double_uses"`
	SlowCost    Score `json:"slow_cost" yaml:"slow_cost"`
	SlowUses    int   `json:"slow_uses" yaml:"slow_uses"`
	ShuffleCost Score `json:"shuffle_cost" yaml:"shuffle_cost"`
	MinCost     Score `json:"min_cost" yaml:"min_cost"`
	MinUses     int   `json:"min_uses" yaml:"min_uses"`

	PipeCount int   `json:"pipe_count" yaml:"pipe_count"`
	MinValue  Score `json:"min_value" yaml:"min_value"`
	MaxValue  Score `json:"max_value" yaml:"max_value"`

	MinDelaySecs       float64 `json:"min_delay_secs" yaml:"min_delay_secs"`
	MaxDelaySecs       float64 `json:"max_delay_secs" yaml:"max_delay_secs"`
	PipeValueDelaySecs float64 `json:"pipe_value_delay_secs" yaml:"pipe_value_delay_secs"`

	// TimeToRun is the wall-clock match duration in seconds. Nil means the
	// match runs until the process is shut down externally.
	TimeToRun *float64 `json:"time_to_run" yaml:"time_to_run"`
}

// DefaultConfig returns the compiled-in match configuration.
func DefaultConfig() Config {
	return Config{
		ReverseCost:        15,
		DoubleCost:         50,
		DoubleUses:         2,
		SlowCost:           20,
		SlowUses:           3,
		ShuffleCost:        10,
		MinCost:            30,
		MinUses:            3,
		PipeCount:          10,
		MinValue:           1,
		MaxValue:           100,
		MinDelaySecs:       0.5,
		MaxDelaySecs:       3.0,
		PipeValueDelaySecs: 1.0,
	}
}

// LoadConfig reads a config file, decoding YAML when the extension is
// .yaml or .yml and JSON otherwise. The path "-" reads JSON from stdin.
func LoadConfig(path string) (Config, error) {
	var reader io.Reader
	switch path {
	case "-":
		reader = os.Stdin
	default:
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()
		reader = file
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// ModifierCost returns the configured price of a modifier kind.
func (c Config) ModifierCost(kind ModifierKind) Score {
	switch kind {
	case ModifierSlow:
		return c.SlowCost
	case ModifierDouble:
		return c.DoubleCost
	case ModifierMin:
		return c.MinCost
	case ModifierShuffle:
		return c.ShuffleCost
	case ModifierReverse:
		return c.ReverseCost
	}
	return 0
}

// ModifierUses returns the configured use-count for a stacking modifier
// kind; one-shot kinds have no use-count and return 0.
func (c Config) ModifierUses(kind ModifierKind) int {
	switch kind {
	case ModifierSlow:
		return c.SlowUses
	case ModifierDouble:
		return c.DoubleUses
	case ModifierMin:
		return c.MinUses
	}
	return 0
}

// InspectDelay is the fixed suspension applied to every value inspection.
func (c Config) InspectDelay() time.Duration {
	return secondsToDuration(c.PipeValueDelaySecs)
}

// RunDuration reports the configured match deadline, if any.
func (c Config) RunDuration() (time.Duration, bool) {
	if c.TimeToRun == nil {
		return 0, false
	}
	return secondsToDuration(*c.TimeToRun), true
}

func (c Config) randomPipeDelay(rng *rand.Rand) time.Duration {
	span := c.MaxDelaySecs - c.MinDelaySecs
	if span < 0 {
		span = 0
	}
	return secondsToDuration(c.MinDelaySecs + rng.Float64()*span)
}

func (c Config) randomPipeValue(rng *rand.Rand) Score {
	if c.MaxValue <= c.MinValue {
		return c.MinValue
	}
	return c.MinValue + rng.Int63n(c.MaxValue-c.MinValue+1)
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}
