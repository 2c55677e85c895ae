// Package project reads alignment projects: the target books of each
// group, the source books distributed across groups, test reservations and
// manual alignments. A project builds into a document tree.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
	"github.com/FocuswithJustin/JuniperAlign/core/text"
	"github.com/FocuswithJustin/JuniperAlign/core/tree"
	"github.com/FocuswithJustin/JuniperAlign/internal/logging"
	"github.com/FocuswithJustin/JuniperAlign/internal/trainer"
)

// Project is the on-disk description of an alignment workspace.
type Project struct {
	Context trainer.Context `json:"context"`
	Groups  []Group         `json:"groups"`
	Sources []Source        `json:"sources"`
	// TestReservations lists references held out for evaluation.
	TestReservations []string `json:"testReservations,omitempty"`
	// Alignments maps verse references to manual alignments.
	Alignments map[string][]Alignment `json:"alignments,omitempty"`
}

// Group is one target translation.
type Group struct {
	Name  string `json:"name"`
	Books []Book `json:"books"`
}

// Book is a target book, given either as verse objects or as plain text.
type Book struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Text  *tree.BookText `json:"text,omitempty"`
	Plain PlainBook      `json:"plain,omitempty"`
}

// Source is an original-language book distributed to every group that
// contains it.
type Source struct {
	BookID string         `json:"bookId"`
	Text   *tree.BookText `json:"text,omitempty"`
	Plain  PlainBook      `json:"plain,omitempty"`
}

// PlainBook maps chapter to verse key to plain verse text.
type PlainBook map[string]map[string]string

// BookText tokenizes the plain text.
func (p PlainBook) BookText() tree.BookText {
	bt := tree.BookText{Chapters: make(map[string]tree.VerseMap, len(p))}
	for ch, verses := range p {
		vm := make(tree.VerseMap, len(verses))
		for key, s := range verses {
			vm[key] = text.FromPlain(s)
		}
		bt.Chapters[ch] = vm
	}
	return bt
}

// Alignment pairs source words with target words. A word is its text,
// optionally suffixed with "@n" to select its n-th occurrence in the verse.
type Alignment struct {
	Source []string `json:"source"`
	Target []string `json:"target"`
}

// Report summarizes a build.
type Report struct {
	TargetVerses int                 `json:"targetVerses"`
	Sources      []tree.ImportReport `json:"sources"`
	Aligned      int                 `json:"aligned"`
	Reserved     int                 `json:"reserved"`
}

// Load reads a project file.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewIO("read", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		var perr *apperrors.ParseError
		if apperrors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}
	return p, nil
}

// Parse decodes a project.
func Parse(data []byte) (*Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &apperrors.ParseError{Format: "project", Message: err.Error(), Err: err}
	}
	return &p, nil
}

func bookText(bt *tree.BookText, plain PlainBook) tree.BookText {
	if bt != nil {
		return *bt
	}
	return plain.BookText()
}

// Build imports the project into an empty tree. Dropped source verses are
// reported, not treated as failures; invalid references and alignments are.
func (p *Project) Build() (*tree.Collection, Report, error) {
	var report Report
	c := tree.NewCollection()

	for _, g := range p.Groups {
		for _, b := range g.Books {
			bt := bookText(b.Text, b.Plain)
			c = c.AddTargetText(g.Name, b.ID, b.Name, bt)
			report.TargetVerses += bt.VerseCount()
			logging.TreeImport("target", b.ID, bt.VerseCount(), 0, "group", g.Name)
		}
	}

	for _, s := range p.Sources {
		var r tree.ImportReport
		c, r = c.AddSourceText(s.BookID, bookText(s.Text, s.Plain))
		report.Sources = append(report.Sources, r)
		logging.TreeImport("source", s.BookID, r.Added, r.Dropped, "groups", strings.Join(r.Groups, ","))
		if r.Dropped > 0 {
			logging.Warn("source verses dropped", "error", &apperrors.DataError{
				Ref:    s.BookID,
				Reason: fmt.Sprintf("%d verses matched no target verse", r.Dropped),
			})
		}
	}

	refs := make([]string, 0, len(p.Alignments))
	for ref := range p.Alignments {
		refs = append(refs, ref)
	}
	slices.Sort(refs)
	for _, ref := range refs {
		var err error
		if c, err = ApplyAlignment(c, ref, p.Alignments[ref]); err != nil {
			return nil, report, err
		}
		report.Aligned++
	}

	for _, ref := range p.TestReservations {
		r, err := tree.ParseRef(ref)
		if err != nil {
			return nil, report, err
		}
		if c, err = c.SetTestReservation(r.Selector(), true); err != nil {
			return nil, report, apperrors.Wrapf(err, "reserve %s", ref)
		}
		report.Reserved++
	}
	return c, report, nil
}

// ApplyAlignment replaces the alignment of the verse at ref with specs
// resolved against its words. Target words no spec claims go to the word
// bank, so a partial alignment is saved and the verse stays unaligned.
func ApplyAlignment(c *tree.Collection, ref string, specs []Alignment) (*tree.Collection, error) {
	r, err := tree.ParseRef(ref)
	if err != nil {
		return c, err
	}
	v, err := c.SelectedVerse(r.Selector())
	if err != nil {
		return c, err
	}
	source, target := v.SourceTokens(), v.TargetTokens()

	pairs := make([]text.Alignment, 0, len(specs))
	claimed := make(map[text.TokenKey]bool)
	for _, spec := range specs {
		var a text.Alignment
		for _, w := range spec.Source {
			tok, err := findWord(source, w)
			if err != nil {
				return c, apperrors.Wrapf(err, "%s source", ref)
			}
			a.Source = append(a.Source, tok)
		}
		for _, w := range spec.Target {
			tok, err := findWord(target, w)
			if err != nil {
				return c, apperrors.Wrapf(err, "%s target", ref)
			}
			a.Target = append(a.Target, tok)
			claimed[tok.Key()] = true
		}
		pairs = append(pairs, a)
	}

	var bank []text.Token
	for _, t := range target {
		if !claimed[t.Key()] {
			bank = append(bank, t)
		}
	}

	nc, err := c.UpdateAlignment(r.Selector(), bank, pairs)
	if err != nil {
		return c, apperrors.Wrapf(err, "align %s", ref)
	}
	return nc, nil
}

// findWord resolves "text" or "text@n" against a verse's tokens.
func findWord(tokens []text.Token, word string) (text.Token, error) {
	occurrence := 1
	if at := strings.LastIndex(word, "@"); at > 0 {
		n, err := strconv.Atoi(word[at+1:])
		if err != nil || n < 1 {
			return text.Token{}, apperrors.NewParse("word", "", fmt.Sprintf("bad occurrence in %q", word))
		}
		word, occurrence = word[:at], n
	}
	for _, t := range tokens {
		if t.Text == word && t.Occurrence == occurrence {
			return t, nil
		}
	}
	return text.Token{}, apperrors.NewNotFound("word", fmt.Sprintf("%s@%d", word, occurrence))
}

// Export returns the target books of every group with the current
// alignments merged in, keyed by group then book id.
func Export(c *tree.Collection) map[string]map[string]tree.BookText {
	out := make(map[string]map[string]tree.BookText)
	for _, name := range c.GroupNames() {
		g, _ := c.Group(name)
		books := make(map[string]tree.BookText)
		g.RangeBooks(func(id string, b *tree.Book) bool {
			books[id] = b.TargetBook()
			return true
		})
		out[name] = books
	}
	return out
}
