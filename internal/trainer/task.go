package trainer

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"slices"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
	"github.com/FocuswithJustin/JuniperAlign/core/model"
	"github.com/FocuswithJustin/JuniperAlign/core/text"
	"github.com/FocuswithJustin/JuniperAlign/internal/logging"
)

// Task is a running background training job.
type Task interface {
	// Messages delivers status and result messages. It is closed when the
	// task exits.
	Messages() <-chan Message
	// Terminate asks the task to stop. Messages already queued may still
	// be delivered.
	Terminate()
}

// Runner starts background tasks from a startTraining message.
type Runner interface {
	Start(msg Message) (Task, error)
}

// GoroutineRunner trains in a separate goroutine. The request is
// serialized before the goroutine starts, so the task never shares memory
// with the caller.
type GoroutineRunner struct {
	factory model.Factory
}

// NewGoroutineRunner returns a runner that trains models built by factory.
func NewGoroutineRunner(factory model.Factory) *GoroutineRunner {
	return &GoroutineRunner{factory: factory}
}

// Start launches a task for msg.
func (r *GoroutineRunner) Start(msg Message) (Task, error) {
	if msg.Type != MsgStartTraining || msg.Start == nil {
		return nil, apperrors.NewValidation("message.type", fmt.Sprintf("expected %s, got %s", MsgStartTraining, msg.Type))
	}
	data, err := json.Marshal(msg.Start)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to encode training request")
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &goroutineTask{
		out:    make(chan Message, 16),
		cancel: cancel,
		runID:  msg.RunID,
	}
	go t.run(ctx, r.factory, data)
	return t, nil
}

type goroutineTask struct {
	out    chan Message
	cancel context.CancelFunc
	runID  string
}

func (t *goroutineTask) Messages() <-chan Message { return t.out }

func (t *goroutineTask) Terminate() { t.cancel() }

func (t *goroutineTask) send(ctx context.Context, msg Message) {
	msg.RunID = t.runID
	select {
	case t.out <- msg:
	case <-ctx.Done():
	}
}

func (t *goroutineTask) fail(ctx context.Context, err error) {
	t.send(ctx, Message{Type: MsgResult, Result: &Result{Error: err.Error()}})
}

func (t *goroutineTask) run(ctx context.Context, factory model.Factory, data []byte) {
	defer close(t.out)
	defer t.cancel()
	defer func() {
		if p := recover(); p != nil {
			logging.Error("training task panicked", "run_id", t.runID, "panic", p, "stack", string(debug.Stack()))
			t.fail(ctx, fmt.Errorf("panic: %v", p))
		}
	}()

	var req StartRequest
	if err := json.Unmarshal(data, &req); err != nil {
		t.fail(ctx, err)
		return
	}

	m := factory()
	for _, key := range sortedKeys(req.Alignments) {
		e := req.Alignments[key]
		m.AddAlignments(e.Source, e.Target, e.Alignments)
	}
	var sources, targets [][]text.Token
	for _, key := range sortedKeys(req.Corpus) {
		e := req.Corpus[key]
		sources = append(sources, e.Source)
		targets = append(targets, e.Target)
	}

	progress := func(step, total int, loss float64) {
		t.send(ctx, Message{Type: MsgStatus, Status: &Progress{Step: step, TotalSteps: total, Loss: loss}})
	}
	if err := m.Train(ctx, sources, targets, progress); err != nil {
		if ctx.Err() == nil {
			t.fail(ctx, err)
		}
		return
	}
	if len(req.Memory) > 0 {
		m.AddMemory(req.Memory)
	}

	blob, err := m.Save()
	if err != nil {
		t.fail(ctx, err)
		return
	}
	t.send(ctx, Message{Type: MsgResult, Result: &Result{Model: blob}})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
