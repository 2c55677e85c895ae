package model

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
	"github.com/FocuswithJustin/JuniperAlign/core/text"
)

const (
	cooccurFormat  = "cooccur"
	cooccurVersion = 1

	// supervisedWeight is how many corpus co-occurrences one manual
	// alignment counts for.
	supervisedWeight = 4.0
	memoryConfidence = 1.0
	minConfidence    = 0.05
)

// Cooccur scores source/target word pairs with the Dice coefficient over
// verse-level co-occurrence, boosted by manual alignments, and recalls
// alignment memory verbatim.
type Cooccur struct {
	pairs   map[string]float64
	source  map[string]float64
	target  map[string]float64
	memory  map[string]map[string]int
	pending []supervised
}

type supervised struct {
	source, target []text.Token
	alignments     []text.Alignment
}

// NewCooccur returns an untrained model.
func NewCooccur() *Cooccur {
	return &Cooccur{
		pairs:  make(map[string]float64),
		source: make(map[string]float64),
		target: make(map[string]float64),
		memory: make(map[string]map[string]int),
	}
}

// NewTrainable is a Factory for Cooccur.
func NewTrainable() Trainable { return NewCooccur() }

func pairKey(s, t string) string { return s + "\x00" + t }

func norm(s string) string { return strings.ToLower(s) }

func (m *Cooccur) AddAlignments(source, target []text.Token, alignments []text.Alignment) {
	m.pending = append(m.pending, supervised{
		source:     text.CloneTokens(source),
		target:     text.CloneTokens(target),
		alignments: alignments,
	})
}

func (m *Cooccur) AddMemory(alignments []text.Alignment) {
	for _, a := range alignments {
		if len(a.Source) == 0 || len(a.Target) == 0 {
			continue
		}
		s, t := norm(a.Source.String()), norm(a.Target.String())
		if m.memory[s] == nil {
			m.memory[s] = make(map[string]int)
		}
		m.memory[s][t]++
	}
}

// Train counts co-occurrences verse by verse. Every supervised verse is
// also counted as corpus, then its alignments add weighted pair counts.
func (m *Cooccur) Train(ctx context.Context, sourceCorpus, targetCorpus [][]text.Token, progress ProgressFunc) error {
	if len(sourceCorpus) != len(targetCorpus) {
		return apperrors.NewValidation("corpus", "source and target corpus differ in length")
	}
	total := len(sourceCorpus) + len(m.pending)
	step := 0
	report := func() {
		step++
		if progress != nil {
			progress(step, total, m.loss())
		}
	}

	for i := range sourceCorpus {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.count(sourceCorpus[i], targetCorpus[i], 1)
		report()
	}
	for _, sv := range m.pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		m.count(sv.source, sv.target, 1)
		for _, a := range sv.alignments {
			for _, s := range a.Source {
				for _, t := range a.Target {
					m.pairs[pairKey(norm(s.Text), norm(t.Text))] += supervisedWeight
					m.source[norm(s.Text)] += supervisedWeight
					m.target[norm(t.Text)] += supervisedWeight
				}
			}
		}
		report()
	}
	m.pending = nil
	return nil
}

func (m *Cooccur) count(source, target []text.Token, w float64) {
	seenS := make(map[string]bool)
	for _, s := range source {
		seenS[norm(s.Text)] = true
	}
	seenT := make(map[string]bool)
	for _, t := range target {
		seenT[norm(t.Text)] = true
	}
	for s := range seenS {
		m.source[s] += w
		for t := range seenT {
			m.pairs[pairKey(s, t)] += w
		}
	}
	for t := range seenT {
		m.target[t] += w
	}
}

func (m *Cooccur) dice(s, t string) float64 {
	denom := m.source[s] + m.target[t]
	if denom == 0 {
		return 0
	}
	return math.Min(1, 2*m.pairs[pairKey(s, t)]/denom)
}

// loss is one minus the mean best Dice score per source word seen so far.
func (m *Cooccur) loss() float64 {
	if len(m.source) == 0 {
		return 1
	}
	best := make(map[string]float64, len(m.source))
	for k := range m.pairs {
		s, t, _ := strings.Cut(k, "\x00")
		if d := m.dice(s, t); d > best[s] {
			best[s] = d
		}
	}
	sum := 0.0
	for _, d := range best {
		sum += d
	}
	return 1 - sum/float64(len(m.source))
}

// Predict aligns greedily: memory hits first, then the highest scoring
// remaining source/target word pairs. Each target word is used once.
func (m *Cooccur) Predict(source, target []text.Token) []Prediction {
	usedS := make(map[int]bool)
	usedT := make(map[int]bool)
	var out []Prediction

	for si, s := range source {
		targets := m.memory[norm(s.Text)]
		if len(targets) == 0 {
			continue
		}
		for ti, t := range target {
			if usedT[ti] || targets[norm(t.Text)] == 0 {
				continue
			}
			usedS[si], usedT[ti] = true, true
			out = append(out, Prediction{Source: text.Ngram{s}, Target: text.Ngram{t}, Confidence: memoryConfidence})
			break
		}
	}

	type cand struct {
		si, ti int
		score  float64
	}
	var cands []cand
	for si, s := range source {
		if usedS[si] {
			continue
		}
		for ti, t := range target {
			if usedT[ti] {
				continue
			}
			if d := m.dice(norm(s.Text), norm(t.Text)); d >= minConfidence {
				cands = append(cands, cand{si, ti, d})
			}
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	for _, c := range cands {
		if usedS[c.si] || usedT[c.ti] {
			continue
		}
		usedS[c.si], usedT[c.ti] = true, true
		out = append(out, Prediction{
			Source:     text.Ngram{source[c.si]},
			Target:     text.Ngram{target[c.ti]},
			Confidence: c.score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

type cooccurFile struct {
	Format  string                    `json:"format"`
	Version int                       `json:"version"`
	Pairs   map[string]float64        `json:"pairs"`
	Source  map[string]float64        `json:"source"`
	Target  map[string]float64        `json:"target"`
	Memory  map[string]map[string]int `json:"memory,omitempty"`
}

func (m *Cooccur) Save() ([]byte, error) {
	return json.Marshal(cooccurFile{
		Format:  cooccurFormat,
		Version: cooccurVersion,
		Pairs:   m.pairs,
		Source:  m.source,
		Target:  m.target,
		Memory:  m.memory,
	})
}

// Load restores a model written by Save.
func Load(data []byte) (Trainable, error) {
	var f cooccurFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &apperrors.ParseError{Format: "model", Message: err.Error(), Err: err}
	}
	if f.Format != cooccurFormat || f.Version != cooccurVersion {
		return nil, apperrors.NewParse("model", "", "unsupported model format "+f.Format)
	}
	m := NewCooccur()
	for k, v := range f.Pairs {
		m.pairs[k] = v
	}
	for k, v := range f.Source {
		m.source[k] = v
	}
	for k, v := range f.Target {
		m.target[k] = v
	}
	for k, v := range f.Memory {
		m.memory[k] = v
	}
	return m, nil
}
