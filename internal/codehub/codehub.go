// Package codehub adapts a match to the competition platform: it detects
// the platform environment, maps bearer tokens to external player ids,
// and writes the result summary files the platform collects.
package codehub

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	server "pipe-rush/server"
	"pipe-rush/server/eventlog"
)

// UserID is the platform's numeric player identifier.
type UserID = int64

// Config is the platform contract read from the environment.
type Config struct {
	// SummaryPath is where the platform expects the run summary. The env
	// var is called GAME_LOG_LOCATION but it points at the summary, not
	// the game log.
	SummaryPath string

	// TimeToRun overrides the match duration, in seconds.
	TimeToRun *float64

	// UserIDByToken maps each player's bearer token to its platform id.
	UserIDByToken map[string]UserID
}

// Detect reports the platform configuration, or nil when the process is
// not running on the platform.
func Detect() (*Config, error) {
	summaryPath, ok := os.LookupEnv("GAME_LOG_LOCATION")
	if !ok {
		return nil, nil
	}

	clientsJSON := os.Getenv("CLIENTS_JSON")
	if clientsJSON == "" {
		return nil, fmt.Errorf("CLIENTS_JSON env var expected")
	}
	clientTokens := make(map[string]string)
	if err := json.Unmarshal([]byte(clientsJSON), &clientTokens); err != nil {
		return nil, fmt.Errorf("failed to parse CLIENTS_JSON: %w", err)
	}

	cfg := &Config{
		SummaryPath:   summaryPath,
		UserIDByToken: make(map[string]UserID, len(clientTokens)),
	}
	for rawID, token := range clientTokens {
		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse CLIENTS_JSON id %q: %w", rawID, err)
		}
		cfg.UserIDByToken[token] = id
	}

	if raw, ok := os.LookupEnv("TIME_TO_RUN"); ok {
		seconds, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse TIME_TO_RUN: %w", err)
		}
		cfg.TimeToRun = &seconds
	}

	return cfg, nil
}

// Tokens returns the roster in a deterministic order.
func (c *Config) Tokens() []string {
	tokens := make([]string, 0, len(c.UserIDByToken))
	for token := range c.UserIDByToken {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// MapLogEntry rewrites the entry's player token to the platform id, for
// the saved game log.
func (c *Config) MapLogEntry(entry eventlog.Entry) eventlog.Entry {
	entry.Msg = server.MapEventUser(entry.Msg, func(token string) any {
		if id, ok := c.UserIDByToken[token]; ok {
			return id
		}
		return token
	})
	return entry
}

// PlayerResult is the platform's optional per-player verdict.
type PlayerResult struct {
	Crashed   bool     `json:"crashed"`
	CrashTick *int     `json:"crash_tick"`
	TimeUsed  *float64 `json:"time_used"`
	Comment   *string  `json:"comment"`
}

// Results is the platform's score report.
type Results struct {
	Players map[UserID]PlayerResult `json:"players"`
	Results map[UserID]float64      `json:"results"`
	Seed    *uint64                 `json:"seed"`
}

// FromScores converts a final snapshot into the platform's report shape.
func (c *Config) FromScores(scores server.Results) Results {
	results := make(map[UserID]float64, len(scores))
	for token, score := range scores {
		if id, ok := c.UserIDByToken[token]; ok {
			results[id] = float64(score)
		}
	}
	return Results{Results: results}
}

type summaryFile struct {
	Filename  string `json:"filename"`
	Location  string `json:"location"`
	IsPrivate bool   `json:"is_private"`
}

type summary struct {
	Visio  summaryFile `json:"visio"`
	Scores summaryFile `json:"scores"`
}

// WriteGameLog publishes the run artifacts: results.json next to the
// process, and the summary file pointing the platform at the game log and
// the scores.
func (c *Config) WriteGameLog(gameLogPath string, results Results) error {
	const resultsPath = "results.json"
	if err := writePrettyJSON(resultsPath, results); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	visio, err := newSummaryFile(gameLogPath)
	if err != nil {
		return err
	}
	scores, err := newSummaryFile(resultsPath)
	if err != nil {
		return err
	}
	if err := writePrettyJSON(c.SummaryPath, summary{Visio: visio, Scores: scores}); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// WriteErrors reports a fatal startup/shutdown failure to the platform
// instead of crashing the run.
func (c *Config) WriteErrors(errs []string) error {
	payload := struct {
		Errors []string `json:"errors"`
	}{Errors: errs}
	if err := writePrettyJSON(c.SummaryPath, payload); err != nil {
		return fmt.Errorf("failed to write errors summary: %w", err)
	}
	return nil
}

func newSummaryFile(path string) (summaryFile, error) {
	location, err := filepath.Abs(path)
	if err != nil {
		return summaryFile{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return summaryFile{
		Filename: filepath.Base(path),
		Location: location,
	}, nil
}

func writePrettyJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
