// Package model defines the contract of a trainable word-alignment model
// and ships a co-occurrence implementation used by default.
package model

import (
	"context"

	"github.com/FocuswithJustin/JuniperAlign/core/text"
)

// ProgressFunc receives training progress. Loss is model specific and only
// meaningful relative to earlier reports of the same run.
type ProgressFunc func(step, totalSteps int, loss float64)

// Prediction is one suggested alignment.
type Prediction struct {
	Source     text.Ngram `json:"source"`
	Target     text.Ngram `json:"target"`
	Confidence float64    `json:"confidence"`
}

// Trainable is an alignment model that can be trained, queried and
// serialized. Implementations are not safe for concurrent use.
type Trainable interface {
	// AddAlignments adds manually aligned verse pairs as supervision.
	AddAlignments(source, target []text.Token, alignments []text.Alignment)
	// Train fits the model on parallel corpus text plus any supervision
	// added so far.
	Train(ctx context.Context, sourceCorpus, targetCorpus [][]text.Token, progress ProgressFunc) error
	// AddMemory records alignments that are recalled verbatim at prediction
	// time without being trained on.
	AddMemory(alignments []text.Alignment)
	// Predict returns suggestions for a verse pair, best first.
	Predict(source, target []text.Token) []Prediction
	// Save serializes the model.
	Save() ([]byte, error)
}

// Loader restores a model from Save output.
type Loader func(data []byte) (Trainable, error)

// Factory creates an untrained model.
type Factory func() Trainable
