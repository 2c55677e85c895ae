package tree

import (
	"github.com/FocuswithJustin/JuniperAlign/core/pmap"
)

// Header is a book-level USFM marker such as \id or \h.
type Header struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

// BookText is a whole book as the USFM toolchain produces it.
type BookText struct {
	Headers  []Header            `json:"headers,omitempty"`
	Chapters map[string]VerseMap `json:"chapters"`
}

// VerseCount returns the number of verse entries across all chapters.
func (b BookText) VerseCount() int {
	n := 0
	for _, ch := range b.Chapters {
		n += len(ch)
	}
	return n
}

// Book is a set of chapters plus the raw whole-book source and target
// content, kept so the book can be written back out.
type Book struct {
	id            string
	name          string
	chapters      pmap.Map[*Chapter]
	sourceHeaders []Header
	targetHeaders []Header
}

// NewBook returns an empty book.
func NewBook(id, name string) *Book {
	return &Book{id: id, name: name}
}

func (b *Book) clone() *Book {
	nb := *b
	return &nb
}

// ID returns the book identifier (e.g. "tit").
func (b *Book) ID() string { return b.id }

// Name returns the display name.
func (b *Book) Name() string { return b.name }

// Chapter returns the chapter stored under key.
func (b *Book) Chapter(key string) (*Chapter, bool) {
	return b.chapters.Get(key)
}

// ChapterKeys returns chapter keys in numeric order.
func (b *Book) ChapterKeys() []string {
	return b.chapters.Keys()
}

// RangeChapters visits chapters in order until fn returns false.
func (b *Book) RangeChapters(fn func(key string, c *Chapter) bool) {
	b.chapters.Range(fn)
}

// WithChapter returns a book with key bound to c.
func (b *Book) WithChapter(key string, c *Chapter) *Book {
	nb := b.clone()
	nb.chapters = b.chapters.Set(key, c)
	return nb
}

// WithoutChapter returns a book without key.
func (b *Book) WithoutChapter(key string) *Book {
	nb := b.clone()
	nb.chapters = b.chapters.Delete(key)
	return nb
}

// AddTargetText imports a whole target book.
func (b *Book) AddTargetText(bt BookText) (nb *Book, changed bool) {
	nb = b.clone()
	nb.targetHeaders = append([]Header(nil), bt.Headers...)
	for key, verses := range bt.Chapters {
		ch, ok := nb.chapters.Get(key)
		if !ok {
			ch = NewChapter()
		}
		nch, chChanged := ch.AddTargetVerses(verses)
		changed = changed || chChanged
		nb.chapters = nb.chapters.Set(key, nch)
	}
	return nb, changed
}

// AddSourceText imports a whole source book into the chapters that already
// hold target text. Chapters missing from the book count as dropped.
func (b *Book) AddSourceText(bt BookText) (nb *Book, report SourceImport, changed bool) {
	nb = b.clone()
	nb.sourceHeaders = append([]Header(nil), bt.Headers...)
	for key, verses := range bt.Chapters {
		ch, ok := nb.chapters.Get(key)
		if !ok {
			report.Dropped += len(verses)
			continue
		}
		nch, chReport, chChanged := ch.AddSourceVerses(key, verses)
		report.merge(chReport)
		changed = changed || chChanged
		nb.chapters = nb.chapters.Set(key, nch)
	}
	return nb, report, changed
}

// TargetBook writes the book back out with current alignments merged into
// every verse.
func (b *Book) TargetBook() BookText {
	bt := BookText{Headers: append([]Header(nil), b.targetHeaders...), Chapters: map[string]VerseMap{}}
	b.chapters.Range(func(key string, c *Chapter) bool {
		bt.Chapters[key] = c.TargetVerses()
		return true
	})
	return bt
}

// SourceBook returns the source content last imported.
func (b *Book) SourceBook() BookText {
	bt := BookText{Headers: append([]Header(nil), b.sourceHeaders...), Chapters: map[string]VerseMap{}}
	b.chapters.Range(func(key string, c *Chapter) bool {
		if src := c.SourceVerses(); len(src) > 0 {
			bt.Chapters[key] = src
		}
		return true
	})
	return bt
}
