package modelcache

import "strings"

// Testament codes used in model keys.
const (
	OldTestament = "ot"
	NewTestament = "nt"
)

var newTestamentBooks = map[string]bool{
	"mat": true, "mrk": true, "luk": true, "jhn": true, "act": true,
	"rom": true, "1co": true, "2co": true, "gal": true, "eph": true,
	"php": true, "col": true, "1th": true, "2th": true, "1ti": true,
	"2ti": true, "tit": true, "phm": true, "heb": true, "jas": true,
	"1pe": true, "2pe": true, "1jn": true, "2jn": true, "3jn": true,
	"jud": true, "rev": true,
}

// Testament returns "nt" for New Testament book ids and "ot" otherwise.
// Ids are USFM book codes, matched case-insensitively.
func Testament(bookID string) string {
	if newTestamentBooks[strings.ToLower(bookID)] {
		return NewTestament
	}
	return OldTestament
}

// ModelKey returns the store key of the model trained for a book:
// bibleId_testament_bookId.
func ModelKey(bibleID, bookID string) string {
	return bibleID + "_" + Testament(bookID) + "_" + bookID
}

// SettingsKey returns the store key of the per-language-pair settings.
func SettingsKey(targetLanguage, sourceLanguage string) string {
	return "settings_" + targetLanguage + "_" + sourceLanguage
}

// Keys identifies the cache entries for one alignment context.
type Keys struct {
	BibleID        string `json:"bibleId"`
	BookID         string `json:"bookId"`
	TargetLanguage string `json:"targetLanguage"`
	SourceLanguage string `json:"sourceLanguage"`
}

// Model returns the model key.
func (k Keys) Model() string { return ModelKey(k.BibleID, k.BookID) }

// Settings returns the settings key.
func (k Keys) Settings() string { return SettingsKey(k.TargetLanguage, k.SourceLanguage) }
