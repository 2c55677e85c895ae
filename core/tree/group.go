package tree

import "github.com/FocuswithJustin/JuniperAlign/core/pmap"

// Group is a set of target books sharing one source edition; it is the
// scope of one translation memory.
type Group struct {
	name  string
	books pmap.Map[*Book]
}

// NewGroup returns an empty group.
func NewGroup(name string) *Group {
	return &Group{name: name}
}

func (g *Group) clone() *Group {
	ng := *g
	return &ng
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// Book returns the book stored under id.
func (g *Group) Book(id string) (*Book, bool) {
	return g.books.Get(id)
}

// BookIDs returns the ids of all books in the group.
func (g *Group) BookIDs() []string {
	return g.books.Keys()
}

// RangeBooks visits books in order until fn returns false.
func (g *Group) RangeBooks(fn func(id string, b *Book) bool) {
	g.books.Range(fn)
}

// WithBook returns a group with id bound to b.
func (g *Group) WithBook(id string, b *Book) *Group {
	ng := g.clone()
	ng.books = g.books.Set(id, b)
	return ng
}

// WithoutBook returns a group without id.
func (g *Group) WithoutBook(id string) *Group {
	ng := g.clone()
	ng.books = g.books.Delete(id)
	return ng
}

// AddTargetBook imports target text for a book, creating the book if needed.
func (g *Group) AddTargetBook(id, name string, bt BookText) (ng *Group, changed bool) {
	b, ok := g.books.Get(id)
	if !ok {
		b = NewBook(id, name)
	}
	nb, changed := b.AddTargetText(bt)
	return g.WithBook(id, nb), changed || !ok
}

// AddSourceBook distributes source text to the matching book. matched is
// false when the group has no such book; the group is then returned as is.
func (g *Group) AddSourceBook(id string, bt BookText) (ng *Group, report SourceImport, matched, changed bool) {
	b, ok := g.books.Get(id)
	if !ok {
		return g, SourceImport{}, false, false
	}
	nb, report, changed := b.AddSourceText(bt)
	return g.WithBook(id, nb), report, true, changed
}
