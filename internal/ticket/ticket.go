// Package ticket generates and parses public ticket codes of the form
// CC-YYYYMMDD-XXXXX, e.g. SC-20260830-K7TQM.
package ticket

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/stadtportal/be-mm-reports/internal/repository"
)

// codeAlphabet omits visually ambiguous characters (I, O, 0, 1) so codes can
// be read aloud and typed without confusion. 32^5 combinations per category
// per day; collisions are rare but possible, so creation retries on conflict.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	codeLength = 5
	dateLayout = "20060102"
)

var categoryCodes = map[repository.Category]string{
	repository.CategoryTrash:     "MU",
	repository.CategoryDamage:    "SC",
	repository.CategoryVandalism: "VA",
	repository.CategoryOther:     "SO",
}

// Ticket is the parsed form of a ticket code.
type Ticket struct {
	Category repository.Category
	Date     time.Time
	Code     string
}

// Generate produces a new ticket code for the category, dated today in the
// server's local calendar. Unknown categories fall back to the OTHER code.
func Generate(category repository.Category) string {
	code, ok := categoryCodes[category]
	if !ok {
		code = categoryCodes[repository.CategoryOther]
	}
	return fmt.Sprintf("%s-%s-%s", code, time.Now().Format(dateLayout), randomCode(codeLength))
}

// Parse inverts Generate. The second return value is false for malformed
// input: wrong segment shape, characters outside the code alphabet, or a
// date that does not exist. An unknown category prefix maps to OTHER.
func Parse(ticketCode string) (Ticket, bool) {
	parts := strings.Split(ticketCode, "-")
	if len(parts) != 3 {
		return Ticket{}, false
	}
	prefix, dateStr, code := parts[0], parts[1], parts[2]

	if len(prefix) != 2 || !isUpperAlpha(prefix) {
		return Ticket{}, false
	}
	if len(code) != codeLength {
		return Ticket{}, false
	}
	for _, c := range code {
		if !strings.ContainsRune(codeAlphabet, c) {
			return Ticket{}, false
		}
	}

	date, err := time.ParseInLocation(dateLayout, dateStr, time.Local)
	if err != nil {
		return Ticket{}, false
	}

	category := repository.CategoryOther
	for cat, cc := range categoryCodes {
		if cc == prefix {
			category = cat
			break
		}
	}

	return Ticket{Category: category, Date: date, Code: code}, true
}

func randomCode(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(b)
}

func isUpperAlpha(s string) bool {
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
