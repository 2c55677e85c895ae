package trainer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
	"github.com/FocuswithJustin/JuniperAlign/core/model"
	"github.com/FocuswithJustin/JuniperAlign/core/text"
	"github.com/FocuswithJustin/JuniperAlign/core/tree"
)

func words(s string) []text.Token {
	return text.ToWords(text.FromPlain(s))
}

func startRequest() *StartRequest {
	req := &StartRequest{
		ContextID:     "ult_nt_tit",
		MaxComplexity: 1000,
		Alignments:    map[string]tree.Entry{},
		Corpus:        map[string]tree.CorpusEntry{},
	}
	pairs := [][2]string{{"θεός", "God"}, {"λόγος", "word"}, {"ζωή", "life"}}
	for _, p := range pairs {
		src, tgt := words(p[0]), words(p[1])
		req.Alignments[p[0]] = tree.Entry{
			Source:     src,
			Target:     tgt,
			Alignments: []text.Alignment{{Source: text.Ngram{src[0]}, Target: text.Ngram{tgt[0]}}},
		}
	}
	req.Corpus["c1"] = tree.CorpusEntry{Source: words("θεός λόγος"), Target: words("God word")}
	mem := words("ἀγάπη")
	req.Memory = []text.Alignment{{Source: text.Ngram{mem[0]}, Target: words("love")}}
	return req
}

// collect drains a task until its channel closes.
func collect(t *testing.T, task Task) []Message {
	t.Helper()
	var out []Message
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-task.Messages():
			if !ok {
				return out
			}
			out = append(out, msg)
		case <-timeout:
			t.Fatal("task did not finish")
		}
	}
}

func TestGoroutineRunnerTrains(t *testing.T) {
	r := NewGoroutineRunner(model.NewTrainable)
	task, err := r.Start(Message{Type: MsgStartTraining, RunID: "r1", Start: startRequest()})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	msgs := collect(t, task)
	if len(msgs) == 0 {
		t.Fatal("expected messages")
	}

	last := msgs[len(msgs)-1]
	if last.Type != MsgResult || last.Result == nil || last.Result.Error != "" {
		t.Fatalf("expected successful result, got %+v", last)
	}
	for _, msg := range msgs[:len(msgs)-1] {
		if msg.Type != MsgStatus || msg.RunID != "r1" {
			t.Errorf("unexpected message %+v", msg)
		}
	}

	m, err := model.Load(last.Result.Model)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	preds := m.Predict(words("ἀγάπη"), words("love"))
	if len(preds) != 1 || preds[0].Confidence != 1 {
		t.Errorf("expected alignment memory recall, got %v", preds)
	}
}

func TestGoroutineRunnerRejectsOtherMessages(t *testing.T) {
	r := NewGoroutineRunner(model.NewTrainable)
	_, err := r.Start(Message{Type: MsgStatus})
	var verr *apperrors.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected validation error, got %v", err)
	}
}

type panickingModel struct{ model.Trainable }

func (panickingModel) AddAlignments([]text.Token, []text.Token, []text.Alignment) {
	panic("corrupt supervision")
}

func TestGoroutineRunnerRecoversPanic(t *testing.T) {
	r := NewGoroutineRunner(func() model.Trainable { return panickingModel{} })
	task, err := r.Start(Message{Type: MsgStartTraining, RunID: "r2", Start: startRequest()})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	msgs := collect(t, task)
	if len(msgs) != 1 || msgs[0].Result == nil || !strings.Contains(msgs[0].Result.Error, "corrupt supervision") {
		t.Errorf("expected panic converted to a result, got %+v", msgs)
	}
}

type blockingModel struct {
	model.Trainable
	started chan struct{}
}

func (blockingModel) AddAlignments([]text.Token, []text.Token, []text.Alignment) {}

func (m blockingModel) Train(ctx context.Context, _, _ [][]text.Token, _ model.ProgressFunc) error {
	close(m.started)
	<-ctx.Done()
	return ctx.Err()
}

func TestGoroutineRunnerTerminate(t *testing.T) {
	started := make(chan struct{})
	r := NewGoroutineRunner(func() model.Trainable { return blockingModel{started: started} })
	task, err := r.Start(Message{Type: MsgStartTraining, RunID: "r3", Start: startRequest()})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-started
	task.Terminate()
	if msgs := collect(t, task); len(msgs) != 0 {
		t.Errorf("terminated task must not report, got %+v", msgs)
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		p    Progress
		want int
	}{
		{Progress{Step: 0, TotalSteps: 0}, 0},
		{Progress{Step: 1, TotalSteps: 3}, 33},
		{Progress{Step: 2, TotalSteps: 3}, 67},
		{Progress{Step: 5, TotalSteps: 1000}, 1},
		{Progress{Step: 4, TotalSteps: 1000}, 0},
		{Progress{Step: 9, TotalSteps: 3}, 100},
	}
	for _, tt := range tests {
		if got := tt.p.Percent(); got != tt.want {
			t.Errorf("Percent(%+v) = %d, want %d", tt.p, got, tt.want)
		}
	}
}
