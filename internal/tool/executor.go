package tool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akiyama0/storemind/internal/llm"
	"github.com/akiyama0/storemind/internal/log"
)

// ExecutionMode selects how a batch of requested tool calls runs.
type ExecutionMode string

const (
	// Sequential runs calls one at a time in request order.
	Sequential ExecutionMode = "sequential"
	// Parallel runs one goroutine per call and joins before returning.
	Parallel ExecutionMode = "parallel"
)

// DefaultCallTimeout bounds a single tool invocation.
const DefaultCallTimeout = 30 * time.Second

// Observation is the outcome of one tool call, in request order.
type Observation struct {
	CallID  string
	Name    string
	Content string
}

// Executor runs a batch of model-requested tool calls against a tool set.
// A failing or unknown call yields an error observation; it never aborts the
// rest of the batch.
type Executor struct {
	mode        ExecutionMode
	callTimeout time.Duration
	logger      log.Logger
}

// NewExecutor creates an Executor. An unrecognized mode falls back to
// Sequential; callTimeout <= 0 takes DefaultCallTimeout; logger may be nil.
func NewExecutor(mode ExecutionMode, callTimeout time.Duration, logger log.Logger) *Executor {
	if mode != Parallel {
		mode = Sequential
	}
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Executor{mode: mode, callTimeout: callTimeout, logger: logger}
}

// Execute runs every requested call and returns observations in request
// order. len(result) == len(calls) always.
func (e *Executor) Execute(ctx context.Context, tools []*Tool, calls []llm.ToolCall) []Observation {
	byName := make(map[string]*Tool, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}

	observations := make([]Observation, len(calls))
	if e.mode == Parallel && len(calls) > 1 {
		var wg sync.WaitGroup
		for i, call := range calls {
			wg.Add(1)
			go func() {
				defer wg.Done()
				observations[i] = e.runOne(ctx, byName, call)
			}()
		}
		wg.Wait()
		return observations
	}

	for i, call := range calls {
		observations[i] = e.runOne(ctx, byName, call)
	}
	return observations
}

func (e *Executor) runOne(ctx context.Context, byName map[string]*Tool, call llm.ToolCall) Observation {
	obs := Observation{CallID: call.ID, Name: call.Name}

	t, ok := byName[call.Name]
	if !ok {
		obs.Content = errorPayload(fmt.Errorf("tool %q does not exist", call.Name))
		e.logger.Warn("unknown tool requested", "tool", call.Name)
		return obs
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	start := time.Now()
	obs.Content = t.Invoke(callCtx, call.Arguments)
	e.logger.Debug("tool finished", "tool", call.Name, "duration", time.Since(start))
	return obs
}
