package tree

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
	"github.com/FocuswithJustin/JuniperAlign/core/pmap"
	"github.com/FocuswithJustin/JuniperAlign/core/text"
)

// Collection is the root of the document tree. It is an immutable value:
// every write returns a new Collection that shares all untouched subtrees
// with the receiver.
//
// InstanceCount changes exactly when alignment-relevant content changes
// somewhere in the tree, so callers can use it to decide whether a model
// needs retraining.
type Collection struct {
	groups        pmap.Map[*Group]
	instanceCount int
}

// ImportReport summarizes a source import across all groups.
type ImportReport struct {
	BookID string `json:"bookId"`
	// Added counts source verses accepted by at least one group.
	Added int `json:"added"`
	// Dropped counts source verses no group accepted.
	Dropped int `json:"dropped"`
	// Groups lists the groups that received the book.
	Groups []string `json:"groups,omitempty"`
}

// NewCollection returns an empty tree.
func NewCollection() *Collection {
	return &Collection{}
}

func (c *Collection) clone() *Collection {
	nc := *c
	return &nc
}

// bump returns nc with the instance count advanced past c's when changed.
func (c *Collection) bump(nc *Collection, changed bool) *Collection {
	if changed {
		nc.instanceCount = c.instanceCount + 1
	}
	return nc
}

// InstanceCount returns the change token.
func (c *Collection) InstanceCount() int { return c.instanceCount }

// Group returns the group stored under name.
func (c *Collection) Group(name string) (*Group, bool) {
	return c.groups.Get(name)
}

// GroupNames returns all group names in order.
func (c *Collection) GroupNames() []string {
	return c.groups.Keys()
}

// WithGroup returns a tree with name bound to g. The instance count is
// advanced since the replaced subtree is opaque to the collection.
func (c *Collection) WithGroup(name string, g *Group) *Collection {
	nc := c.clone()
	nc.groups = c.groups.Set(name, g)
	return c.bump(nc, true)
}

// AddTargetText imports a target book into group, creating both as needed.
func (c *Collection) AddTargetText(group, bookID, name string, bt BookText) *Collection {
	g, ok := c.groups.Get(group)
	if !ok {
		g = NewGroup(group)
	}
	ng, changed := g.AddTargetBook(bookID, name, bt)
	nc := c.clone()
	nc.groups = c.groups.Set(group, ng)
	return c.bump(nc, changed)
}

// AddSourceText distributes a source book to every group that holds a
// target book with the same id. A source verse counts as dropped only when
// no group accepted it.
func (c *Collection) AddSourceText(bookID string, bt BookText) (*Collection, ImportReport) {
	report := ImportReport{BookID: bookID}
	accepted := make(map[string]struct{})
	nc := c.clone()
	changed := false
	c.groups.Range(func(name string, g *Group) bool {
		ng, gr, matched, gChanged := g.AddSourceBook(bookID, bt)
		if !matched {
			return true
		}
		report.Groups = append(report.Groups, name)
		for _, key := range gr.Accepted {
			accepted[key] = struct{}{}
		}
		changed = changed || gChanged
		nc.groups = nc.groups.Set(name, ng)
		return true
	})
	report.Added = len(accepted)
	report.Dropped = bt.VerseCount() - report.Added
	return c.bump(nc, changed), report
}

// Lookup helpers return NotSelectedError when sel does not reach the level
// and NotFoundError when a selected level does not exist.

// SelectedGroup returns the group addressed by sel.
func (c *Collection) SelectedGroup(sel Selector) (*Group, error) {
	if err := sel.require(1); err != nil {
		return nil, err
	}
	g, ok := c.groups.Get(sel.Group)
	if !ok {
		return nil, apperrors.NewNotFound("group", sel.Group)
	}
	return g, nil
}

// SelectedBook returns the book addressed by sel.
func (c *Collection) SelectedBook(sel Selector) (*Book, error) {
	if err := sel.require(2); err != nil {
		return nil, err
	}
	g, err := c.SelectedGroup(sel)
	if err != nil {
		return nil, err
	}
	b, ok := g.Book(sel.Book)
	if !ok {
		return nil, apperrors.NewNotFound("book", sel.Group+"/"+sel.Book)
	}
	return b, nil
}

// SelectedChapter returns the chapter addressed by sel.
func (c *Collection) SelectedChapter(sel Selector) (*Chapter, error) {
	if err := sel.require(3); err != nil {
		return nil, err
	}
	b, err := c.SelectedBook(sel)
	if err != nil {
		return nil, err
	}
	ch, ok := b.Chapter(sel.Chapter)
	if !ok {
		return nil, apperrors.NewNotFound("chapter", Ref{Group: sel.Group, Book: sel.Book, Chapter: sel.Chapter}.String())
	}
	return ch, nil
}

// SelectedVerse returns the verse addressed by sel.
func (c *Collection) SelectedVerse(sel Selector) (*Verse, error) {
	if err := sel.require(4); err != nil {
		return nil, err
	}
	ch, err := c.SelectedChapter(sel)
	if err != nil {
		return nil, err
	}
	v, ok := ch.Verse(sel.Verse)
	if !ok {
		return nil, apperrors.NewNotFound("verse", sel.Ref().String())
	}
	return v, nil
}

// resolve checks that every selected level of sel exists.
func (c *Collection) resolve(sel Selector) error {
	var err error
	switch sel.Depth() {
	case 0:
		err = sel.require(1)
	case 1:
		_, err = c.SelectedGroup(sel)
	case 2:
		_, err = c.SelectedBook(sel)
	case 3:
		_, err = c.SelectedChapter(sel)
	default:
		_, err = c.SelectedVerse(sel)
	}
	return err
}

// mapVerses rewrites every verse beneath sel with fn, copying only the
// paths that lead to a verse fn actually replaced. changed reports whether
// any replacement differs in alignment content.
func (c *Collection) mapVerses(sel Selector, fn func(*Verse) *Verse) (nc *Collection, changed bool) {
	visit := func(v *Verse) *Verse {
		nv := fn(v)
		if nv != v && !nv.SameAlignmentContent(v) {
			changed = true
		}
		return nv
	}
	mapChapter := func(ch *Chapter) *Chapter {
		out := ch
		ch.RangeVerses(func(key string, v *Verse) bool {
			if sel.Verse != "" && key != sel.Verse {
				return true
			}
			if nv := visit(v); nv != v {
				out = out.WithVerse(key, nv)
			}
			return true
		})
		return out
	}
	mapBook := func(b *Book) *Book {
		out := b
		b.RangeChapters(func(key string, ch *Chapter) bool {
			if sel.Chapter != "" && key != sel.Chapter {
				return true
			}
			if nch := mapChapter(ch); nch != ch {
				out = out.WithChapter(key, nch)
			}
			return true
		})
		return out
	}
	mapGroup := func(g *Group) *Group {
		out := g
		g.RangeBooks(func(id string, b *Book) bool {
			if sel.Book != "" && id != sel.Book {
				return true
			}
			if nb := mapBook(b); nb != b {
				out = out.WithBook(id, nb)
			}
			return true
		})
		return out
	}

	nc = c
	c.groups.Range(func(name string, g *Group) bool {
		if sel.Group != "" && name != sel.Group {
			return true
		}
		if ng := mapGroup(g); ng != g {
			if nc == c {
				nc = c.clone()
			}
			nc.groups = nc.groups.Set(name, ng)
		}
		return true
	})
	if nc != c {
		nc = c.bump(nc, changed)
	}
	return nc, changed
}

// SetTestReservation reserves (or releases) every verse beneath sel for
// held-out evaluation.
func (c *Collection) SetTestReservation(sel Selector, reserved bool) (*Collection, error) {
	if err := c.resolve(sel); err != nil {
		return c, err
	}
	nc, _ := c.mapVerses(sel, func(v *Verse) *Verse {
		return v.SetTestReservation(reserved)
	})
	return nc, nil
}

// UpdateAlignment replaces the alignment of the verse addressed by sel. On
// a merge failure the tree is returned unchanged with the error.
func (c *Collection) UpdateAlignment(sel Selector, wordBank []text.Token, alignments []text.Alignment) (*Collection, error) {
	v, err := c.SelectedVerse(sel)
	if err != nil {
		return c, err
	}
	nv, err := v.UpdateAlignment(wordBank, alignments)
	if err != nil {
		return c, err
	}
	return c.replaceVerse(sel.Ref(), nv), nil
}

// replaceVerse path-copies the tree down to ref and binds nv there. The
// verse must exist.
func (c *Collection) replaceVerse(ref Ref, nv *Verse) *Collection {
	g, _ := c.groups.Get(ref.Group)
	b, _ := g.Book(ref.Book)
	ch, _ := b.Chapter(ref.Chapter)
	old, _ := ch.Verse(ref.Verse)

	nc := c.clone()
	nc.groups = c.groups.Set(ref.Group, g.WithBook(ref.Book, b.WithChapter(ref.Chapter, ch.WithVerse(ref.Verse, nv))))
	return c.bump(nc, !nv.SameAlignmentContent(old))
}

// RemoveSelected removes the deepest node addressed by sel.
func (c *Collection) RemoveSelected(sel Selector) (*Collection, error) {
	if err := c.resolve(sel); err != nil {
		return c, err
	}
	nc := c.clone()
	g, _ := c.groups.Get(sel.Group)
	switch sel.Depth() {
	case 1:
		nc.groups = c.groups.Delete(sel.Group)
	case 2:
		nc.groups = c.groups.Set(sel.Group, g.WithoutBook(sel.Book))
	case 3:
		b, _ := g.Book(sel.Book)
		nc.groups = c.groups.Set(sel.Group, g.WithBook(sel.Book, b.WithoutChapter(sel.Chapter)))
	default:
		b, _ := g.Book(sel.Book)
		ch, _ := b.Chapter(sel.Chapter)
		nc.groups = c.groups.Set(sel.Group, g.WithBook(sel.Book, b.WithChapter(sel.Chapter, ch.WithoutVerse(sel.Verse))))
	}
	return c.bump(nc, true), nil
}

// MergeWith overlays other onto c book by book: books in other replace
// books with the same id in the same group; everything else is kept.
func (c *Collection) MergeWith(other *Collection) *Collection {
	if other == nil || other.groups.Len() == 0 {
		return c
	}
	nc := c.clone()
	changed := false
	other.groups.Range(func(name string, og *Group) bool {
		g, ok := nc.groups.Get(name)
		if !ok {
			nc.groups = nc.groups.Set(name, og)
			changed = true
			return true
		}
		og.RangeBooks(func(id string, ob *Book) bool {
			if b, ok := g.Book(id); ok && b == ob {
				return true
			}
			g = g.WithBook(id, ob)
			changed = true
			return true
		})
		nc.groups = nc.groups.Set(name, g)
		return true
	})
	if !changed {
		return c
	}
	return c.bump(nc, true)
}

// RangeVerses visits every verse in natural order until fn returns false.
func (c *Collection) RangeVerses(fn func(ref Ref, v *Verse) bool) {
	cont := true
	c.groups.Range(func(gname string, g *Group) bool {
		g.RangeBooks(func(bid string, b *Book) bool {
			b.RangeChapters(func(ckey string, ch *Chapter) bool {
				ch.RangeVerses(func(vkey string, v *Verse) bool {
					cont = fn(Ref{Group: gname, Book: bid, Chapter: ckey, Verse: vkey}, v)
					return cont
				})
				return cont
			})
			return cont
		})
		return cont
	})
}

// SetTestScores attaches evaluation scores to the referenced verses.
// Unknown references are ignored. Scores are annotations, so the instance
// count does not change.
func (c *Collection) SetTestScores(scores map[Ref]Score) *Collection {
	if len(scores) == 0 {
		return c
	}
	nc := c
	for ref, s := range scores {
		v, err := nc.SelectedVerse(ref.Selector())
		if err != nil {
			continue
		}
		nc = nc.replaceVerse(ref, v.WithTestScore(s))
	}
	return nc
}

// StateCounts returns the number of verses in each state.
func (c *Collection) StateCounts() map[State]int {
	counts := make(map[State]int)
	c.RangeVerses(func(_ Ref, v *Verse) bool {
		counts[v.State()]++
		return true
	})
	return counts
}

// Fingerprint returns a BLAKE3 digest over every alignment-relevant field
// in the tree. Two trees with equal fingerprints train identical models.
func (c *Collection) Fingerprint() string {
	h := blake3.New()
	var n [8]byte
	writeStr := func(s string) {
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		_, _ = h.Write(n[:])
		_, _ = h.Write([]byte(s))
	}
	writeTokens := func(tokens []text.Token) {
		binary.LittleEndian.PutUint64(n[:], uint64(len(tokens)))
		_, _ = h.Write(n[:])
		for _, t := range tokens {
			writeStr(t.Text)
			binary.LittleEndian.PutUint64(n[:], uint64(t.Occurrence))
			_, _ = h.Write(n[:])
		}
	}
	c.RangeVerses(func(ref Ref, v *Verse) bool {
		writeStr(ref.String())
		writeStr(v.State().String())
		writeTokens(v.source)
		writeTokens(v.target)
		writeTokens(v.wordBank)
		for _, a := range v.alignments {
			writeTokens(a.Source)
			writeTokens(a.Target)
		}
		return true
	})
	return hex.EncodeToString(h.Sum(nil))
}
