package tradelog

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"llm-defi-agent/internal/types"
)

type Config struct {
	Dir        string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// ExecutionEntry is one line of executions.log.
type ExecutionEntry struct {
	Time       string                `json:"time"`
	DecisionID string                `json:"decision_id,omitempty"`
	Result     types.ExecutionResult `json:"result"`
}

// DecisionEntry is one line of decisions.log.
type DecisionEntry struct {
	Time       string                   `json:"time"`
	Pair       string                   `json:"pair"`
	Decision   *types.Decision          `json:"decision"`
	Indicators *types.IndicatorSnapshot `json:"indicators,omitempty"`
}

var (
	mu         sync.Mutex
	executions io.WriteCloser
	decisions  io.WriteCloser
)

// Init opens the rotating log files. Until Init is called every append is a no-op.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	executions = newRotator(cfg, "executions.log")
	decisions = newRotator(cfg, "decisions.log")
}

func newRotator(cfg Config, name string) *lumberjack.Logger {
	dir := cfg.Dir
	if dir == "" {
		dir = "logs"
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
}

// Close flushes and closes both files.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	return closeLocked()
}

func closeLocked() error {
	var first error
	for _, w := range []io.WriteCloser{executions, decisions} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	executions, decisions = nil, nil
	return first
}

func AppendExecution(decisionID string, res types.ExecutionResult) error {
	return write(&executions, ExecutionEntry{DecisionID: decisionID, Result: res})
}

func AppendDecision(pair string, d *types.Decision, snap *types.IndicatorSnapshot) error {
	if d == nil {
		return nil
	}
	return write(&decisions, DecisionEntry{Pair: pair, Decision: d, Indicators: snap})
}

func write(dst *io.WriteCloser, entry any) error {
	mu.Lock()
	defer mu.Unlock()
	if *dst == nil {
		return nil
	}
	switch e := entry.(type) {
	case ExecutionEntry:
		e.Time = now()
		entry = e
	case DecisionEntry:
		e.Time = now()
		entry = e
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal trade log entry: %w", err)
	}
	_, err = fmt.Fprintln(*dst, string(b))
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
