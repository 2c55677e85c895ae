// Package reduce trims a training set until its estimated training cost
// fits a complexity budget.
package reduce

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/FocuswithJustin/JuniperAlign/core/pmap"
	"github.com/FocuswithJustin/JuniperAlign/core/tree"
)

// Complexity estimates the cost of training on one verse pair. The product
// term dominates: the aligner scores every source/target n-gram pairing.
func Complexity(sourceLen, targetLen int) int {
	return sourceLen + targetLen + sourceLen*targetLen
}

// EntryComplexity returns the complexity of a training entry.
func EntryComplexity(e tree.Entry) int {
	return Complexity(len(e.Source), len(e.Target))
}

// Intner picks a uniform random index in [0, n).
type Intner interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Options controls a reduction.
type Options struct {
	// MaxComplexity is the budget for the summed complexity.
	MaxComplexity int
	// CurrentBook and CurrentChapter identify the verses kept longest.
	CurrentBook    string
	CurrentChapter string
	// DropAllOtherBooks removes every verse outside CurrentBook, then
	// restores removed verses until MinTrainingVerseRatio of the current
	// book's verse count is met, even over budget.
	DropAllOtherBooks     bool
	MinTrainingVerseRatio float64
	// Rand drives the last-resort random tier. Nil uses math/rand/v2.
	Rand Intner
}

// Result is the outcome of a reduction. Keys, KeyCount and
// AlignedComplexityCount always describe the same live set.
type Result struct {
	Alignments             map[string]tree.Entry
	Keys                   []string
	KeyCount               int
	AlignedComplexityCount int
	// Removed holds the evicted entries so they can be restored or fed to
	// the model as alignment memory.
	Removed map[string]tree.Entry
	// RemovedOrder lists evicted keys, oldest first.
	RemovedOrder []string
	Trimmed      bool
}

type reducer struct {
	*Result
	opts Options
}

// Reduce trims alignments in ordered tiers until the total complexity is
// within opts.MaxComplexity or nothing eligible remains:
//
//  1. verses from other books, in stable order
//  2. verses from other chapters of the current book
//  3. random verses
//
// The input map is not modified.
func Reduce(alignments map[string]tree.Entry, opts Options) *Result {
	if opts.Rand == nil {
		opts.Rand = globalRand{}
	}
	r := &reducer{
		Result: &Result{
			Alignments: make(map[string]tree.Entry, len(alignments)),
			Removed:    make(map[string]tree.Entry),
		},
		opts: opts,
	}
	for k, e := range alignments {
		r.Alignments[k] = e
		r.Keys = append(r.Keys, k)
		r.AlignedComplexityCount += EntryComplexity(e)
	}
	slices.SortFunc(r.Keys, func(a, b string) int {
		return compareRefs(alignments[a].Ref, alignments[b].Ref, a, b)
	})
	r.KeyCount = len(r.Keys)

	currentCount := 0
	for _, k := range r.Keys {
		if r.Alignments[k].Ref.Book == opts.CurrentBook {
			currentCount++
		}
	}

	r.removeWhere(func(e tree.Entry) bool { return e.Ref.Book != opts.CurrentBook }, opts.DropAllOtherBooks)
	if opts.CurrentChapter != "" {
		r.removeWhere(func(e tree.Entry) bool {
			return e.Ref.Book == opts.CurrentBook && e.Ref.Chapter != opts.CurrentChapter
		}, false)
	}
	for r.over() && r.KeyCount > 0 {
		r.remove(r.Keys[opts.Rand.IntN(r.KeyCount)])
	}

	if opts.DropAllOtherBooks {
		minVerses := int(math.Ceil(float64(currentCount) * opts.MinTrainingVerseRatio))
		for r.KeyCount < minVerses && len(r.RemovedOrder) > 0 {
			r.restoreLast()
		}
	}
	r.Trimmed = len(r.RemovedOrder) > 0
	return r.Result
}

func (r *reducer) over() bool {
	return r.AlignedComplexityCount > r.opts.MaxComplexity
}

// removeWhere evicts matching keys in live-key order, stopping at the
// budget unless unconditional is set.
func (r *reducer) removeWhere(match func(tree.Entry) bool, unconditional bool) {
	for _, k := range slices.Clone(r.Keys) {
		if !unconditional && !r.over() {
			return
		}
		if match(r.Alignments[k]) {
			r.remove(k)
		}
	}
}

func (r *reducer) remove(key string) {
	e, ok := r.Alignments[key]
	if !ok {
		return
	}
	delete(r.Alignments, key)
	if i := slices.Index(r.Keys, key); i >= 0 {
		r.Keys = slices.Delete(r.Keys, i, i+1)
	}
	r.KeyCount--
	r.AlignedComplexityCount -= EntryComplexity(e)
	r.Removed[key] = e
	r.RemovedOrder = append(r.RemovedOrder, key)
}

func (r *reducer) restoreLast() {
	key := r.RemovedOrder[len(r.RemovedOrder)-1]
	r.RemovedOrder = r.RemovedOrder[:len(r.RemovedOrder)-1]
	e := r.Removed[key]
	delete(r.Removed, key)
	r.Alignments[key] = e
	i, _ := slices.BinarySearchFunc(r.Keys, key, func(a, b string) int {
		return compareRefs(r.Alignments[a].Ref, r.Alignments[b].Ref, a, b)
	})
	r.Keys = slices.Insert(r.Keys, i, key)
	r.KeyCount++
	r.AlignedComplexityCount += EntryComplexity(e)
}

// compareRefs orders references naturally, falling back to the raw keys.
func compareRefs(a, b tree.Ref, ka, kb string) int {
	for _, p := range [][2]string{{a.Group, b.Group}, {a.Book, b.Book}, {a.Chapter, b.Chapter}, {a.Verse, b.Verse}} {
		switch {
		case pmap.Less(p[0], p[1]):
			return -1
		case pmap.Less(p[1], p[0]):
			return 1
		}
	}
	switch {
	case ka < kb:
		return -1
	case ka > kb:
		return 1
	}
	return 0
}
