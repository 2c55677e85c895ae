package tree

import (
	"sort"
	"strconv"

	"github.com/FocuswithJustin/JuniperAlign/core/pmap"
	"github.com/FocuswithJustin/JuniperAlign/core/text"
)

// VerseMap is raw chapter content keyed by verse number or span key.
type VerseMap map[string][]text.VerseObject

// SourceImport reports what happened to imported source verses.
type SourceImport struct {
	Added   int
	Dropped int
	// Accepted lists the source verse keys that were attached somewhere,
	// qualified as "chapter:verse".
	Accepted []string
}

func (s *SourceImport) merge(o SourceImport) {
	s.Added += o.Added
	s.Dropped += o.Dropped
	s.Accepted = append(s.Accepted, o.Accepted...)
}

// Chapter is an ordered set of verses plus the raw per-chapter source and
// target content they were built from.
type Chapter struct {
	verses    pmap.Map[*Verse]
	sourceRaw VerseMap
	targetRaw VerseMap
}

// NewChapter returns an empty chapter.
func NewChapter() *Chapter {
	return &Chapter{}
}

func (c *Chapter) clone() *Chapter {
	nc := *c
	return &nc
}

// Verse returns the verse stored under key.
func (c *Chapter) Verse(key string) (*Verse, bool) {
	return c.verses.Get(key)
}

// VerseKeys returns verse keys in natural order.
func (c *Chapter) VerseKeys() []string {
	return c.verses.Keys()
}

// Len returns the number of verses.
func (c *Chapter) Len() int {
	return c.verses.Len()
}

// RangeVerses visits verses in order until fn returns false.
func (c *Chapter) RangeVerses(fn func(key string, v *Verse) bool) {
	c.verses.Range(fn)
}

// WithVerse returns a chapter with key bound to v.
func (c *Chapter) WithVerse(key string, v *Verse) *Chapter {
	nc := c.clone()
	nc.verses = c.verses.Set(key, v)
	return nc
}

// WithoutVerse returns a chapter without key.
func (c *Chapter) WithoutVerse(key string) *Chapter {
	nc := c.clone()
	nc.verses = c.verses.Delete(key)
	return nc
}

// AddTargetVerses attaches target text to the keyed verses, creating them
// as needed. changed reports whether any alignment-relevant content moved.
func (c *Chapter) AddTargetVerses(verses VerseMap) (nc *Chapter, changed bool) {
	nc = c.clone()
	nc.targetRaw = verses.clone()
	for key, objs := range verses {
		old, ok := nc.verses.Get(key)
		if !ok {
			old = NewVerse()
		}
		nv := old.AddTargetText(objs)
		if !ok || !nv.SameAlignmentContent(old) {
			changed = true
		}
		nc.verses = nc.verses.Set(key, nv)
	}
	return nc, changed
}

// AddSourceVerses attaches source text keyed by single verse numbers.
// Exact keys are applied directly. A source verse without an exact key that
// falls inside a span key (e.g. "3-5") contributes to that span, which
// receives every covered source verse concatenated in verse order. Verses
// matching neither are counted as dropped.
func (c *Chapter) AddSourceVerses(chapterKey string, src VerseMap) (nc *Chapter, report SourceImport, changed bool) {
	nc = c.clone()
	nc.sourceRaw = src.clone()

	type span struct {
		key        string
		start, end int
	}
	var spans []span
	c.verses.Range(func(key string, _ *Verse) bool {
		if start, end, err := ParseVerseKey(key); err == nil && end > start {
			spans = append(spans, span{key, start, end})
		}
		return true
	})

	apply := func(key string, objs []text.VerseObject) {
		old, _ := nc.verses.Get(key)
		nv := old.AddSourceText(objs)
		if !nv.SameAlignmentContent(old) {
			changed = true
		}
		nc.verses = nc.verses.Set(key, nv)
	}

	spanHits := make(map[string]bool)
	for _, key := range sortedKeys(src) {
		if nc.verses.Has(key) {
			apply(key, src[key])
			report.Added++
			report.Accepted = append(report.Accepted, chapterKey+":"+key)
			continue
		}
		n, err := strconv.Atoi(key)
		if err != nil {
			report.Dropped++
			continue
		}
		matched := false
		for _, s := range spans {
			if n >= s.start && n <= s.end {
				spanHits[s.key] = true
				matched = true
				break
			}
		}
		if matched {
			report.Added++
			report.Accepted = append(report.Accepted, chapterKey+":"+key)
		} else {
			report.Dropped++
		}
	}

	for _, s := range spans {
		if !spanHits[s.key] {
			continue
		}
		var parts [][]text.VerseObject
		for n := s.start; n <= s.end; n++ {
			if objs, ok := src[strconv.Itoa(n)]; ok {
				parts = append(parts, objs)
			}
		}
		apply(s.key, text.Concat(parts...))
	}
	return nc, report, changed
}

func (m VerseMap) clone() VerseMap {
	out := make(VerseMap, len(m))
	for k, v := range m {
		out[k] = text.Clone(v)
	}
	return out
}

// TargetVerses returns the chapter's target content with current alignments
// merged in, falling back to the raw import for verses no longer present.
func (c *Chapter) TargetVerses() VerseMap {
	out := c.targetRaw.clone()
	c.verses.Range(func(key string, v *Verse) bool {
		if v.HasTarget() {
			out[key] = v.TargetObjects()
		}
		return true
	})
	return out
}

// SourceVerses returns the raw source content last imported.
func (c *Chapter) SourceVerses() VerseMap {
	return c.sourceRaw.clone()
}

func sortedKeys(m VerseMap) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return pmap.Less(keys[i], keys[j]) })
	return keys
}
