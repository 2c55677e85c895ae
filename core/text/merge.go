package text

import (
	"slices"
	"sort"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
)

// MergeAlignment writes alignments back into verse text, producing target
// verse objects where each aligned run of target words is wrapped in
// alignment milestones for its source n-gram. Every word of verseText must be
// covered exactly once, either by an alignment target or by the word bank;
// anything else is an AlignmentMergeError.
func MergeAlignment(alignments []Alignment, wordBank []Token, verseText string) ([]VerseObject, error) {
	segments := FromPlain(verseText)

	inVerse := make(map[TokenKey]bool)
	for _, t := range ToWords(segments) {
		inVerse[t.Key()] = true
	}

	owner := make(map[TokenKey]int)
	claim := func(t Token, ai int) error {
		k := t.Key()
		if !inVerse[k] {
			return apperrors.NewAlignmentMerge(t.Text, "token is not in the verse text")
		}
		if _, dup := owner[k]; dup {
			return apperrors.NewAlignmentMerge(t.Text, "token is used more than once")
		}
		owner[k] = ai
		return nil
	}
	for ai, a := range alignments {
		if len(a.Target) == 0 {
			continue
		}
		if len(a.Source) == 0 {
			return nil, apperrors.NewAlignmentMerge(a.Target[0].Text, "alignment has no source words")
		}
		for _, t := range a.Target {
			if err := claim(t, ai); err != nil {
				return nil, err
			}
		}
	}
	for _, t := range wordBank {
		if err := claim(t, -1); err != nil {
			return nil, err
		}
	}
	for k := range inVerse {
		if _, ok := owner[k]; !ok {
			return nil, apperrors.NewAlignmentMerge(k.Text, "verse word is neither aligned nor in the word bank")
		}
	}

	var (
		out       []VerseObject
		pending   []VerseObject
		openAlign = -1
		openIdx   = -1
	)
	flush := func() {
		out = append(out, pending...)
		pending = nil
	}
	for _, seg := range segments {
		if seg.Type != TypeWord {
			pending = append(pending, seg)
			continue
		}
		ai := owner[TokenKey{Text: seg.Text, Occurrence: seg.Occurrence}]
		if ai >= 0 && ai == openAlign {
			m := innermost(&out[openIdx])
			m.Children = append(m.Children, pending...)
			m.Children = append(m.Children, seg)
			pending = nil
			continue
		}
		flush()
		openAlign = -1
		if ai < 0 {
			out = append(out, seg)
			continue
		}
		out = append(out, milestoneFor(alignments[ai].Source, seg))
		openAlign = ai
		openIdx = len(out) - 1
	}
	flush()
	return out, nil
}

func milestoneFor(source Ngram, word VerseObject) VerseObject {
	inner := []VerseObject{word}
	for i := len(source) - 1; i >= 0; i-- {
		s := source[i]
		inner = []VerseObject{{
			Type:        TypeMilestone,
			Tag:         TagAlignment,
			Content:     s.Text,
			Occurrence:  s.Occurrence,
			Occurrences: s.Occurrences,
			Strong:      s.Strong,
			Lemma:       s.Lemma,
			Morph:       s.Morph,
			Children:    inner,
		}}
	}
	return inner[0]
}

func innermost(m *VerseObject) *VerseObject {
	for len(m.Children) > 0 && m.Children[0].Type == TypeMilestone {
		m = &m.Children[0]
	}
	return m
}

// UnmergeAlignment reads alignments and the unaligned word bank out of
// target verse objects. Milestone source words are resolved against source;
// milestones naming words that are not in source are dissolved and their
// target words returned to the word bank. Source words that no alignment
// covers come back as alignments with an empty target.
func UnmergeAlignment(target []VerseObject, source []Token) ([]Alignment, []Token) {
	targetTokens := ToWords(target)
	sourceByKey := make(map[TokenKey]Token, len(source))
	for _, s := range source {
		sourceByKey[s.Key()] = s
	}

	var (
		aligned []Alignment
		bank    []Token
		k       int
	)
	var collect func(o VerseObject, src, tgt *Ngram)
	collect = func(o VerseObject, src, tgt *Ngram) {
		*src = append(*src, Token{Text: o.Content, Occurrence: o.Occurrence, Occurrences: o.Occurrences})
		for _, c := range o.Children {
			switch c.Type {
			case TypeWord:
				*tgt = append(*tgt, targetTokens[k])
				k++
			case TypeMilestone:
				collect(c, src, tgt)
			}
		}
	}

	for _, o := range target {
		switch o.Type {
		case TypeWord:
			bank = append(bank, targetTokens[k])
			k++
		case TypeMilestone:
			var src, tgt Ngram
			collect(o, &src, &tgt)
			resolved, ok := resolve(src, sourceByKey)
			if !ok {
				bank = append(bank, tgt...)
				continue
			}
			if i := indexOfSource(aligned, resolved); i >= 0 {
				aligned[i].Target = append(aligned[i].Target, tgt...)
				continue
			}
			aligned = append(aligned, Alignment{Source: resolved, Target: tgt})
		}
	}

	used := make(map[TokenKey]bool)
	for _, a := range aligned {
		for _, s := range a.Source {
			used[s.Key()] = true
		}
	}
	for _, s := range source {
		if !used[s.Key()] {
			aligned = append(aligned, Alignment{Source: Ngram{s}})
		}
	}

	for i := range aligned {
		sort.SliceStable(aligned[i].Target, func(a, b int) bool {
			return aligned[i].Target[a].Index < aligned[i].Target[b].Index
		})
	}
	sort.SliceStable(aligned, func(a, b int) bool {
		return aligned[a].Source[0].Index < aligned[b].Source[0].Index
	})
	sort.SliceStable(bank, func(a, b int) bool { return bank[a].Index < bank[b].Index })
	return aligned, bank
}

func resolve(src Ngram, byKey map[TokenKey]Token) (Ngram, bool) {
	out := make(Ngram, len(src))
	for i, s := range src {
		t, ok := byKey[s.Key()]
		if !ok {
			return nil, false
		}
		out[i] = t
	}
	return out, true
}

func indexOfSource(aligned []Alignment, src Ngram) int {
	for i, a := range aligned {
		if sameKeys(a.Source, src) {
			return i
		}
	}
	return -1
}

func sameKeys(a, b Ngram) bool {
	return slices.EqualFunc(a, b, func(x, y Token) bool { return x.Key() == y.Key() })
}

// IsComplete reports whether every source word is aligned to at least one
// target word and no target word is left in the word bank.
func IsComplete(alignments []Alignment, wordBank []Token) bool {
	if len(wordBank) > 0 || len(alignments) == 0 {
		return false
	}
	for _, a := range alignments {
		if len(a.Source) == 0 || len(a.Target) == 0 {
			return false
		}
	}
	return true
}

// SameAlignments compares two alignment lists by token text and occurrence,
// ignoring index bookkeeping.
func SameAlignments(a, b []Alignment) bool {
	return slices.EqualFunc(a, b, func(x, y Alignment) bool {
		return sameKeys(x.Source, y.Source) && sameKeys(x.Target, y.Target)
	})
}

// SameTokens compares token sequences by text and occurrence.
func SameTokens(a, b []Token) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return sameKeys(a, b)
}
