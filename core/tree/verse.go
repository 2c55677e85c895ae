package tree

import (
	"slices"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
	"github.com/FocuswithJustin/JuniperAlign/core/text"
)

// State is the derived alignment status of a verse.
type State int

// Verse states, in order of progress.
const (
	NoSource State = iota
	NoTarget
	Unaligned
	AlignedTrain
	AlignedTest
)

var stateNames = [...]string{"no-source", "no-target", "unaligned", "aligned-train", "aligned-test"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// DeriveState computes a verse state from its inputs.
func DeriveState(hasSource, hasTarget, complete, reserved bool) State {
	switch {
	case !hasSource:
		return NoSource
	case !hasTarget:
		return NoTarget
	case !complete:
		return Unaligned
	case reserved:
		return AlignedTest
	default:
		return AlignedTrain
	}
}

// Score is the result of comparing predicted alignments against a held-out
// manual alignment.
type Score struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Verse holds one verse's source text, target text and alignment. A Verse
// is never modified after construction; every operation returns a new one.
type Verse struct {
	sourceObjects []text.VerseObject
	source        []text.Token
	targetObjects []text.VerseObject
	target        []text.Token
	alignments    []text.Alignment
	wordBank      []text.Token
	reserved      bool
	state         State
	score         *Score
}

// NewVerse returns an empty verse in the NoSource state.
func NewVerse() *Verse {
	return &Verse{state: NoSource}
}

func (v *Verse) clone() *Verse {
	nv := *v
	return &nv
}

// HasSource reports whether source text is attached.
func (v *Verse) HasSource() bool { return v.source != nil }

// HasTarget reports whether target text is attached.
func (v *Verse) HasTarget() bool { return v.target != nil }

// State returns the derived alignment state.
func (v *Verse) State() State { return v.state }

// ReservedForTesting reports whether the verse is held out for evaluation.
func (v *Verse) ReservedForTesting() bool { return v.reserved }

// SourceTokens returns a copy of the source words, or nil.
func (v *Verse) SourceTokens() []text.Token { return text.CloneTokens(v.source) }

// TargetTokens returns a copy of the target words, or nil.
func (v *Verse) TargetTokens() []text.Token { return text.CloneTokens(v.target) }

// SourceObjects returns a copy of the source verse objects.
func (v *Verse) SourceObjects() []text.VerseObject { return text.Clone(v.sourceObjects) }

// TargetObjects returns a copy of the target verse objects with the current
// alignment merged in.
func (v *Verse) TargetObjects() []text.VerseObject { return text.Clone(v.targetObjects) }

// TargetText returns the plain target text.
func (v *Verse) TargetText() string { return text.PlainText(v.targetObjects) }

// WordBank returns a copy of the unaligned target words.
func (v *Verse) WordBank() []text.Token { return text.CloneTokens(v.wordBank) }

// Alignments returns a copy of the alignment pairs, including source words
// that are not aligned yet (empty Target).
func (v *Verse) Alignments() []text.Alignment {
	out := make([]text.Alignment, len(v.alignments))
	for i, a := range v.alignments {
		out[i] = text.Alignment{
			Source: text.Ngram(text.CloneTokens(a.Source)),
			Target: text.Ngram(text.CloneTokens(a.Target)),
		}
	}
	return out
}

// CompleteAlignments returns only the pairs that have both sides.
func (v *Verse) CompleteAlignments() []text.Alignment {
	return slices.DeleteFunc(v.Alignments(), func(a text.Alignment) bool {
		return len(a.Source) == 0 || len(a.Target) == 0
	})
}

// IsComplete reports whether every source and target word is aligned.
func (v *Verse) IsComplete() bool {
	return v.source != nil && v.target != nil && text.IsComplete(v.alignments, v.wordBank)
}

// TestScore returns the attached evaluation score, if any.
func (v *Verse) TestScore() (Score, bool) {
	if v.score == nil {
		return Score{}, false
	}
	return *v.score, true
}

// AddSourceText attaches source text. Existing alignments are kept where
// their source words still exist.
func (v *Verse) AddSourceText(objs []text.VerseObject) *Verse {
	nv := v.clone()
	nv.sourceObjects = text.Clone(objs)
	nv.source = nonEmpty(text.ToWords(objs))
	nv.realign()
	return nv
}

// AddTargetText attaches target text. Alignment milestones already present
// in objs are read back as alignments.
func (v *Verse) AddTargetText(objs []text.VerseObject) *Verse {
	nv := v.clone()
	nv.targetObjects = text.Clone(objs)
	nv.target = nonEmpty(text.ToWords(objs))
	if nv.target == nil {
		nv.targetObjects = nil
	}
	nv.realign()
	return nv
}

// SetTestReservation marks the verse as held out for evaluation (or not).
func (v *Verse) SetTestReservation(reserved bool) *Verse {
	if v.reserved == reserved {
		return v
	}
	nv := v.clone()
	nv.reserved = reserved
	nv.derive()
	return nv
}

// UpdateAlignment replaces the alignment with the given pairs and word bank.
// If they cannot be merged losslessly into the target text the verse is
// returned unchanged along with an AlignmentMergeError.
func (v *Verse) UpdateAlignment(wordBank []text.Token, alignments []text.Alignment) (*Verse, error) {
	if v.target == nil {
		return v, apperrors.NewAlignmentMerge("", "verse has no target text")
	}
	merged, err := text.MergeAlignment(alignments, wordBank, v.TargetText())
	if err != nil {
		return v, err
	}
	nv := v.clone()
	nv.targetObjects = merged
	nv.alignments, nv.wordBank = text.UnmergeAlignment(merged, nv.source)
	nv.derive()
	return nv, nil
}

// WithTestScore attaches an evaluation score. This is an annotation and does
// not affect alignment content.
func (v *Verse) WithTestScore(s Score) *Verse {
	nv := v.clone()
	nv.score = &s
	return nv
}

// SameAlignmentContent reports whether two verses agree on every field that
// feeds training: source words, target words, alignment pairs, reservation
// and state. Test scores are ignored.
func (v *Verse) SameAlignmentContent(o *Verse) bool {
	if v == o {
		return true
	}
	if v == nil || o == nil {
		return false
	}
	return v.state == o.state &&
		v.reserved == o.reserved &&
		text.SameTokens(v.source, o.source) &&
		text.SameTokens(v.target, o.target) &&
		text.SameAlignments(v.alignments, o.alignments) &&
		text.SameTokens(v.wordBank, o.wordBank)
}

// realign rebuilds alignments from the target objects against the current
// source, then re-merges so the target objects only carry valid milestones.
func (v *Verse) realign() {
	switch {
	case v.target == nil:
		v.wordBank = nil
		v.alignments = nil
		for _, s := range v.source {
			v.alignments = append(v.alignments, text.Alignment{Source: text.Ngram{s}})
		}
	case v.source == nil:
		// Keep milestones until source text arrives to resolve them.
		v.alignments, v.wordBank = nil, text.CloneTokens(v.target)
	default:
		v.alignments, v.wordBank = text.UnmergeAlignment(v.targetObjects, v.source)
		if merged, err := text.MergeAlignment(v.alignments, v.wordBank, v.TargetText()); err == nil {
			v.targetObjects = merged
		}
	}
	v.derive()
}

func (v *Verse) derive() {
	v.state = DeriveState(v.source != nil, v.target != nil, v.IsComplete(), v.reserved)
}

func nonEmpty(tokens []text.Token) []text.Token {
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}
