package model

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
	"github.com/FocuswithJustin/JuniperAlign/core/text"
)

func words(s string) []text.Token {
	return text.ToWords(text.FromPlain(s))
}

func trainSmall(t *testing.T) *Cooccur {
	t.Helper()
	m := NewCooccur()
	src := [][]text.Token{words("θεός λόγος"), words("θεός ἀγάπη"), words("λόγος ζωή")}
	tgt := [][]text.Token{words("God word"), words("God love"), words("word life")}

	var steps []int
	err := m.Train(context.Background(), src, tgt, func(step, total int, loss float64) {
		if total != 3 {
			t.Errorf("expected 3 total steps, got %d", total)
		}
		steps = append(steps, step)
	})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if len(steps) != 3 || steps[2] != 3 {
		t.Errorf("expected steps 1..3, got %v", steps)
	}
	return m
}

func TestCooccurPredict(t *testing.T) {
	m := trainSmall(t)
	preds := m.Predict(words("θεός λόγος"), words("word God"))
	if len(preds) != 2 {
		t.Fatalf("expected 2 predictions, got %v", preds)
	}
	got := map[string]string{}
	for _, p := range preds {
		got[p.Source.String()] = p.Target.String()
	}
	if got["θεός"] != "God" || got["λόγος"] != "word" {
		t.Errorf("unexpected predictions %v", got)
	}
	if preds[0].Confidence < preds[1].Confidence {
		t.Error("predictions must be ranked best first")
	}
}

func TestCooccurSupervisionAndMemory(t *testing.T) {
	m := NewCooccur()
	src, tgt := words("χάρις"), words("grace")
	m.AddAlignments(src, tgt, []text.Alignment{{Source: text.Ngram{src[0]}, Target: text.Ngram{tgt[0]}}})
	if err := m.Train(context.Background(), nil, nil, nil); err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if p := m.Predict(src, tgt); len(p) != 1 || p[0].Target.String() != "grace" {
		t.Errorf("expected supervised pair, got %v", p)
	}

	m.AddMemory([]text.Alignment{{Source: words("εἰρήνη"), Target: words("peace")}})
	p := m.Predict(words("εἰρήνη"), words("and peace"))
	if len(p) != 1 || p[0].Target.String() != "peace" || p[0].Confidence != memoryConfidence {
		t.Errorf("expected memory recall, got %v", p)
	}
}

func TestCooccurSaveLoad(t *testing.T) {
	m := trainSmall(t)
	m.AddMemory([]text.Alignment{{Source: words("ζωή"), Target: words("life")}})
	data, err := m.Save()
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(data)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	a := m.Predict(words("θεός ζωή"), words("life God"))
	b := loaded.Predict(words("θεός ζωή"), words("life God"))
	if len(a) != len(b) {
		t.Fatalf("expected %v, got %v", a, b)
	}
	for i := range a {
		if a[i].Target.String() != b[i].Target.String() || a[i].Confidence != b[i].Confidence {
			t.Errorf("prediction %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	var perr *apperrors.ParseError
	if _, err := Load([]byte("not json")); !errors.As(err, &perr) {
		t.Errorf("expected ParseError, got %v", err)
	}
	if _, err := Load([]byte(`{"format":"other","version":1}`)); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTrainHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewCooccur().Train(ctx, [][]text.Token{words("a")}, [][]text.Token{words("b")}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
