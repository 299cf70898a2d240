package query

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rivo/uniseg"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/zombor/ahorro/internal/receipt"
)

// Query is a free-text question and the filters derived from it
type Query struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"created_at"`
	Filters   []Filter  `json:"filters"`
}

// NewQuery builds a Query for prompt, deriving filters relative to now
func NewQuery(prompt string, now time.Time) Query {
	return Query{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		CreatedAt: now,
		Filters:   ExtractFilters(prompt, now),
	}
}

var months = []string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

func lower(s string) string {
	// cases.Caser is stateful, so one per call
	return cases.Lower(language.Spanish).String(s)
}

// ExtractFilters derives category and month filters from prompt.
// Category filters come first in enumeration order, then one date range per
// Spanish month name found, always in now's year and location.
func ExtractFilters(prompt string, now time.Time) []Filter {
	text := lower(prompt)
	filters := []Filter{}

	for _, c := range receipt.Categories() {
		if strings.Contains(text, lower(c.Title())) || strings.Contains(text, string(c)) {
			filters = append(filters, Category(c))
		}
	}

	for i, name := range months {
		if !strings.Contains(text, name) {
			continue
		}
		start := time.Date(now.Year(), time.Month(i+1), 1, 0, 0, 0, 0, now.Location())
		end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
		filters = append(filters, DateRange(start, end))
	}

	return filters
}

// Tokenize lowercases text, splits it on word boundaries and keeps the words
// longer than two characters
func Tokenize(text string) []string {
	rest := lower(text)
	tokens := []string{}
	state := -1
	var word string
	for len(rest) > 0 {
		word, rest, state = uniseg.FirstWordInString(rest, state)
		if !isWord(word) || uniseg.GraphemeClusterCount(word) <= 2 {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func isWord(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
