// Package text models verse content as the USFM toolchain hands it over:
// verse objects (words, text runs and alignment milestones) and the flat
// token sequences derived from them.
package text

import (
	"regexp"
	"strings"
)

// ObjectType identifies the kind of a VerseObject.
type ObjectType string

// Verse object kinds.
const (
	TypeWord      ObjectType = "word"
	TypeText      ObjectType = "text"
	TypeMilestone ObjectType = "milestone"
)

// Tags used on word and milestone objects.
const (
	TagWord      = "w"
	TagAlignment = "zaln"
)

// VerseObject is one node of a parsed verse. Words carry occurrence
// bookkeeping; alignment milestones carry the source word they align and
// wrap the target words (or a nested milestone for multi-word sources).
type VerseObject struct {
	Type        ObjectType    `json:"type"`
	Tag         string        `json:"tag,omitempty"`
	Text        string        `json:"text,omitempty"`
	Occurrence  int           `json:"occurrence,omitempty"`
	Occurrences int           `json:"occurrences,omitempty"`
	Content     string        `json:"content,omitempty"`
	Strong      string        `json:"strong,omitempty"`
	Lemma       string        `json:"lemma,omitempty"`
	Morph       string        `json:"morph,omitempty"`
	Children    []VerseObject `json:"children,omitempty"`
}

// Token is a single word of a verse.
type Token struct {
	Text        string `json:"text"`
	Occurrence  int    `json:"occurrence"`
	Occurrences int    `json:"occurrences"`
	Index       int    `json:"index"`
	Lemma       string `json:"lemma,omitempty"`
	Strong      string `json:"strong,omitempty"`
	Morph       string `json:"morph,omitempty"`
}

// Key identifies a token within its verse independent of Index.
func (t Token) Key() TokenKey {
	return TokenKey{Text: t.Text, Occurrence: t.Occurrence}
}

// TokenKey is the (text, occurrence) pair that locates a word in a verse.
type TokenKey struct {
	Text       string
	Occurrence int
}

// Ngram is an ordered group of tokens.
type Ngram []Token

// String joins the token texts with single spaces.
func (n Ngram) String() string {
	parts := make([]string, len(n))
	for i, t := range n {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// Alignment pairs a source n-gram with the target n-gram it translates.
type Alignment struct {
	Source Ngram `json:"source"`
	Target Ngram `json:"target"`
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}]+(?:['’\-][\p{L}\p{M}\p{N}]+)*`)

// Tokenize splits plain text into word strings, dropping punctuation and
// whitespace.
func Tokenize(s string) []string {
	return wordPattern.FindAllString(s, -1)
}

// FromPlain converts plain verse text into word and text objects with
// occurrence counts filled in.
func FromPlain(s string) []VerseObject {
	var objs []VerseObject
	last := 0
	for _, loc := range wordPattern.FindAllStringIndex(s, -1) {
		if loc[0] > last {
			objs = append(objs, VerseObject{Type: TypeText, Text: s[last:loc[0]]})
		}
		objs = append(objs, VerseObject{Type: TypeWord, Tag: TagWord, Text: s[loc[0]:loc[1]]})
		last = loc[1]
	}
	if last < len(s) {
		objs = append(objs, VerseObject{Type: TypeText, Text: s[last:]})
	}
	return renumber(objs)
}

// ToWords flattens verse objects into tokens in reading order. Occurrence
// counts and indexes are recomputed, so stale attributes on the input are
// ignored.
func ToWords(objs []VerseObject) []Token {
	var tokens []Token
	var walk func([]VerseObject)
	walk = func(list []VerseObject) {
		for _, o := range list {
			switch o.Type {
			case TypeWord:
				tokens = append(tokens, Token{
					Text:   o.Text,
					Lemma:  o.Lemma,
					Strong: o.Strong,
					Morph:  o.Morph,
				})
			case TypeMilestone:
				walk(o.Children)
			}
		}
	}
	walk(objs)
	numberTokens(tokens)
	return tokens
}

// PlainText renders verse objects back into a string.
func PlainText(objs []VerseObject) string {
	var sb strings.Builder
	var walk func([]VerseObject)
	walk = func(list []VerseObject) {
		for _, o := range list {
			switch o.Type {
			case TypeWord, TypeText:
				sb.WriteString(o.Text)
			case TypeMilestone:
				walk(o.Children)
			}
		}
	}
	walk(objs)
	return sb.String()
}

// Concat joins several verses into one, separated by a single space, and
// renumbers word occurrences across the result.
func Concat(verses ...[]VerseObject) []VerseObject {
	var out []VerseObject
	for i, v := range verses {
		if i > 0 && len(out) > 0 {
			out = append(out, VerseObject{Type: TypeText, Text: " "})
		}
		out = append(out, Clone(v)...)
	}
	return renumber(out)
}

// Clone deep-copies verse objects.
func Clone(objs []VerseObject) []VerseObject {
	if objs == nil {
		return nil
	}
	out := make([]VerseObject, len(objs))
	for i, o := range objs {
		out[i] = o
		out[i].Children = Clone(o.Children)
	}
	return out
}

// CloneTokens copies a token slice, keeping nil as nil.
func CloneTokens(tokens []Token) []Token {
	if tokens == nil {
		return nil
	}
	return append([]Token(nil), tokens...)
}

// numberTokens assigns Index, Occurrence and Occurrences in place.
func numberTokens(tokens []Token) {
	totals := make(map[string]int, len(tokens))
	for _, t := range tokens {
		totals[t.Text]++
	}
	seen := make(map[string]int, len(tokens))
	for i := range tokens {
		seen[tokens[i].Text]++
		tokens[i].Index = i
		tokens[i].Occurrence = seen[tokens[i].Text]
		tokens[i].Occurrences = totals[tokens[i].Text]
	}
}

// renumber rewrites occurrence attributes on word objects in reading order.
func renumber(objs []VerseObject) []VerseObject {
	tokens := ToWords(objs)
	i := 0
	var walk func([]VerseObject)
	walk = func(list []VerseObject) {
		for k := range list {
			switch list[k].Type {
			case TypeWord:
				list[k].Occurrence = tokens[i].Occurrence
				list[k].Occurrences = tokens[i].Occurrences
				i++
			case TypeMilestone:
				walk(list[k].Children)
			}
		}
	}
	walk(objs)
	return objs
}
