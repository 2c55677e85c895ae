package tree

import "github.com/FocuswithJustin/JuniperAlign/core/text"

// Entry is one supervised training example.
type Entry struct {
	Ref        Ref              `json:"ref"`
	Source     []text.Token     `json:"source"`
	Target     []text.Token     `json:"target"`
	Alignments []text.Alignment `json:"alignments"`
}

// CorpusEntry is parallel text without alignment labels.
type CorpusEntry struct {
	Ref    Ref          `json:"ref"`
	Source []text.Token `json:"source"`
	Target []text.Token `json:"target"`
}

// Dataset is the training (or testing) material extracted from a tree,
// keyed by "group/book/chapter:verse".
type Dataset struct {
	Alignments map[string]Entry       `json:"alignments"`
	Corpus     map[string]CorpusEntry `json:"corpus"`
}

// ExtractDataset walks the tree. Verses in AlignedTrain (or AlignedTest when
// forTesting) become alignment entries. When includeCorpus is set, other
// verses with both source and target text become corpus entries, except
// that held-out verses never leak into a training corpus.
func (c *Collection) ExtractDataset(forTesting, includeCorpus bool) Dataset {
	want, exclude := AlignedTrain, AlignedTest
	if forTesting {
		want, exclude = AlignedTest, NoSource
	}
	ds := Dataset{
		Alignments: make(map[string]Entry),
		Corpus:     make(map[string]CorpusEntry),
	}
	c.RangeVerses(func(ref Ref, v *Verse) bool {
		switch st := v.State(); {
		case st == want:
			ds.Alignments[ref.String()] = Entry{
				Ref:        ref,
				Source:     v.SourceTokens(),
				Target:     v.TargetTokens(),
				Alignments: v.CompleteAlignments(),
			}
		case includeCorpus && st != exclude && v.HasSource() && v.HasTarget():
			ds.Corpus[ref.String()] = CorpusEntry{
				Ref:    ref,
				Source: v.SourceTokens(),
				Target: v.TargetTokens(),
			}
		}
		return true
	})
	return ds
}

// AlignmentCount returns the number of supervised examples.
func (d Dataset) AlignmentCount() int {
	return len(d.Alignments)
}
