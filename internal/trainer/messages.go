package trainer

import (
	"math"

	"github.com/FocuswithJustin/JuniperAlign/core/text"
	"github.com/FocuswithJustin/JuniperAlign/core/tree"
)

// MessageType identifies a message crossing the task boundary.
type MessageType string

const (
	// MsgStartTraining is sent to a task to begin a run.
	MsgStartTraining MessageType = "startTraining"
	// MsgStatus carries progress from a task.
	MsgStatus MessageType = "status"
	// MsgResult carries the trained model or the failure of a run.
	MsgResult MessageType = "result"
)

// Message is the only value exchanged with a background task. Exactly one
// of Start, Status and Result is set, matching Type.
type Message struct {
	Type   MessageType   `json:"type"`
	RunID  string        `json:"runId,omitempty"`
	Start  *StartRequest `json:"start,omitempty"`
	Status *Progress     `json:"status,omitempty"`
	Result *Result       `json:"result,omitempty"`
}

// StartRequest is the dataset handed to a run after reduction.
type StartRequest struct {
	// ContextID is the model key the run trains for.
	ContextID     string                      `json:"contextId"`
	MaxComplexity int                         `json:"maxComplexity"`
	Alignments    map[string]tree.Entry       `json:"alignments"`
	Corpus        map[string]tree.CorpusEntry `json:"corpus,omitempty"`
	// Memory holds alignments of trimmed verses, recalled verbatim by the
	// trained model without being trained on.
	Memory []text.Alignment `json:"memory,omitempty"`
}

// Progress is a training progress report.
type Progress struct {
	Step       int     `json:"step"`
	TotalSteps int     `json:"totalSteps"`
	Loss       float64 `json:"loss"`
}

// Percent returns progress as a rounded integer percentage in [0, 100].
func (p Progress) Percent() int {
	if p.TotalSteps <= 0 {
		return 0
	}
	pct := int(math.Round(float64(p.Step) * 100 / float64(p.TotalSteps)))
	return max(0, min(100, pct))
}

// Result ends a run. Error is set when the task failed; Model otherwise
// holds the serialized model.
type Result struct {
	Model []byte `json:"model,omitempty"`
	Error string `json:"error,omitempty"`
}
