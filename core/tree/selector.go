package tree

import apperrors "github.com/FocuswithJustin/JuniperAlign/core/errors"

// Selector addresses a node of the tree. Levels are filled from the top;
// an empty level means "not selected".
type Selector struct {
	Group   string `json:"group,omitempty"`
	Book    string `json:"book,omitempty"`
	Chapter string `json:"chapter,omitempty"`
	Verse   string `json:"verse,omitempty"`
}

// Ref converts the selector into a reference.
func (s Selector) Ref() Ref {
	return Ref(s)
}

// Depth returns how many consecutive levels are selected, 0 through 4.
func (s Selector) Depth() int {
	switch {
	case s.Group == "":
		return 0
	case s.Book == "":
		return 1
	case s.Chapter == "":
		return 2
	case s.Verse == "":
		return 3
	default:
		return 4
	}
}

var levelNames = [...]string{"group", "book", "chapter", "verse"}

// require returns a NotSelectedError for the first missing level up to depth.
func (s Selector) require(depth int) error {
	if d := s.Depth(); d < depth {
		return apperrors.NewNotSelected(levelNames[d])
	}
	return nil
}
