package tool

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akiyama0/storemind/internal/llm"
)

type noArgs struct{}

func mustTool(t *testing.T, name string, handler func(ctx context.Context, in noArgs) (string, error)) *Tool {
	t.Helper()
	tl, err := New(name, "test tool", handler)
	if err != nil {
		t.Fatalf("New(%s): %v", name, err)
	}
	return tl
}

func TestExecuteSequentialOrder(t *testing.T) {
	var order []string
	tools := []*Tool{
		mustTool(t, "first", func(context.Context, noArgs) (string, error) {
			order = append(order, "first")
			return "one", nil
		}),
		mustTool(t, "second", func(context.Context, noArgs) (string, error) {
			order = append(order, "second")
			return "two", nil
		}),
	}

	ex := NewExecutor(Sequential, time.Second, nil)
	obs := ex.Execute(context.Background(), tools, []llm.ToolCall{
		{ID: "c1", Name: "first"},
		{ID: "c2", Name: "second"},
	})

	if len(obs) != 2 || obs[0].Content != "one" || obs[1].Content != "two" {
		t.Fatalf("observations out of order: %+v", obs)
	}
	if order[0] != "first" || order[1] != "second" {
		t.Fatalf("execution order = %v", order)
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	ex := NewExecutor(Sequential, time.Second, nil)
	obs := ex.Execute(context.Background(), nil, []llm.ToolCall{{ID: "c1", Name: "missing"}})

	if len(obs) != 1 {
		t.Fatalf("observations = %d, want 1", len(obs))
	}
	if !strings.Contains(obs[0].Content, "does not exist") || !strings.Contains(obs[0].Content, `"status":"error"`) {
		t.Errorf("unknown tool observation = %q", obs[0].Content)
	}
}

func TestExecuteParallelJoinsAll(t *testing.T) {
	var running atomic.Int32
	var peak atomic.Int32
	slow := func(context.Context, noArgs) (string, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return "done", nil
	}
	tools := []*Tool{
		mustTool(t, "a", slow),
		mustTool(t, "b", slow),
		mustTool(t, "c", slow),
	}

	ex := NewExecutor(Parallel, time.Second, nil)
	obs := ex.Execute(context.Background(), tools, []llm.ToolCall{
		{ID: "1", Name: "a"}, {ID: "2", Name: "b"}, {ID: "3", Name: "c"},
	})

	for i, o := range obs {
		if o.Content != "done" {
			t.Errorf("observation %d = %q", i, o.Content)
		}
	}
	if peak.Load() < 2 {
		t.Errorf("peak concurrency = %d, want >= 2", peak.Load())
	}
	if running.Load() != 0 {
		t.Error("Execute returned before all workers finished")
	}
}

func TestExecutePartialFailure(t *testing.T) {
	tools := []*Tool{
		mustTool(t, "good", func(context.Context, noArgs) (string, error) { return "fine", nil }),
		mustTool(t, "bad", func(context.Context, noArgs) (string, error) {
			return "", context.DeadlineExceeded
		}),
	}

	ex := NewExecutor(Parallel, time.Second, nil)
	obs := ex.Execute(context.Background(), tools, []llm.ToolCall{
		{ID: "1", Name: "good"}, {ID: "2", Name: "bad"},
	})

	if obs[0].Content != "fine" {
		t.Errorf("healthy call affected by failing sibling: %q", obs[0].Content)
	}
	if !strings.Contains(obs[1].Content, `"status":"error"`) {
		t.Errorf("failing call should yield error observation: %q", obs[1].Content)
	}
}

func TestExecuteCallTimeout(t *testing.T) {
	hang := mustTool(t, "hang", func(ctx context.Context, _ noArgs) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	ex := NewExecutor(Sequential, 10*time.Millisecond, nil)
	obs := ex.Execute(context.Background(), []*Tool{hang}, []llm.ToolCall{{ID: "1", Name: "hang"}})

	if !strings.Contains(obs[0].Content, `"status":"error"`) {
		t.Errorf("timed-out call should yield error observation: %q", obs[0].Content)
	}
}
