package tree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"
)

// Ref is a composite verse reference of the form "group/book/chapter:verse".
// Verse may be a span key such as "3-5".
type Ref struct {
	Group   string `json:"group"`
	Book    string `json:"book"`
	Chapter string `json:"chapter,omitempty"`
	Verse   string `json:"verse,omitempty"`
}

// String renders the reference in its canonical form.
func (r Ref) String() string {
	var sb strings.Builder
	sb.WriteString(r.Group)
	sb.WriteString("/")
	sb.WriteString(r.Book)
	if r.Chapter != "" {
		sb.WriteString("/")
		sb.WriteString(r.Chapter)
		if r.Verse != "" {
			sb.WriteString(":")
			sb.WriteString(r.Verse)
		}
	}
	return sb.String()
}

// Selector returns a selector addressing the same node.
func (r Ref) Selector() Selector {
	return Selector(r)
}

// refGrammar is the participle grammar for composite references.
// Examples: "ugnt/tit", "ugnt/tit/1", "ugnt/tit/1:3", "en_ult/1jn/2:3-5"
//
//nolint:govet // participle grammar tags are not standard struct tags
type refGrammar struct {
	Group   string       `parser:"@(Int | Name)+ '/'"`
	Book    string       `parser:"@(Int | Name)+"`
	Chapter *chapterPart `parser:"( '/' @@ )?"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type chapterPart struct {
	Chapter int        `parser:"@Int"`
	Verse   *versePart `parser:"( ':' @@ )?"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type versePart struct {
	Start int  `parser:"@Int"`
	End   *int `parser:"( '-' @Int )?"`
}

var refLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Name", Pattern: `[A-Za-z_][A-Za-z0-9_.\-]*`},
	{Name: "Punct", Pattern: `[/:\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var refParser = participle.MustBuild[refGrammar](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
)

var verseKeyParser = participle.MustBuild[versePart](
	participle.Lexer(refLexer),
	participle.Elide("Whitespace"),
)

// ParseRef parses a composite reference string.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Ref{}, apperrors.NewParse("reference", "", "empty reference")
	}
	parsed, err := refParser.ParseString("", s)
	if err != nil {
		return Ref{}, &apperrors.ParseError{Format: "reference", Message: fmt.Sprintf("%q", s), Err: err}
	}
	ref := Ref{Group: parsed.Group, Book: parsed.Book}
	if parsed.Chapter != nil {
		ref.Chapter = strconv.Itoa(parsed.Chapter.Chapter)
		if v := parsed.Chapter.Verse; v != nil {
			ref.Verse = v.key()
		}
	}
	return ref, nil
}

func (v *versePart) key() string {
	if v.End != nil {
		return fmt.Sprintf("%d-%d", v.Start, *v.End)
	}
	return strconv.Itoa(v.Start)
}

// ParseVerseKey parses a verse key ("7" or "3-5") into its numeric range.
// Single verses return start == end.
func ParseVerseKey(key string) (start, end int, err error) {
	parsed, err := verseKeyParser.ParseString("", key)
	if err != nil {
		return 0, 0, &apperrors.ParseError{Format: "verse key", Message: fmt.Sprintf("%q", key), Err: err}
	}
	start, end = parsed.Start, parsed.Start
	if parsed.End != nil {
		end = *parsed.End
	}
	if end < start {
		return 0, 0, apperrors.NewParse("verse key", "", fmt.Sprintf("%q has end before start", key))
	}
	return start, end, nil
}

// IsSpanKey reports whether key covers more than one verse.
func IsSpanKey(key string) bool {
	start, end, err := ParseVerseKey(key)
	return err == nil && end > start
}
