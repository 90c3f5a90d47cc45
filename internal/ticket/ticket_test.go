package ticket

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stadtportal/be-mm-reports/internal/repository"
)

var codePattern = regexp.MustCompile(`^[A-Z]{2}-\d{8}-[A-Z2-9]{5}$`)

func TestGenerate(t *testing.T) {
	t.Run("should match the code format", func(t *testing.T) {
		code := Generate(repository.CategoryDamage)
		assert.Regexp(t, codePattern, code)
		assert.True(t, strings.HasPrefix(code, "SC-"))
	})

	t.Run("should use the category prefix", func(t *testing.T) {
		cases := map[repository.Category]string{
			repository.CategoryTrash:     "MU",
			repository.CategoryDamage:    "SC",
			repository.CategoryVandalism: "VA",
			repository.CategoryOther:     "SO",
		}
		for category, prefix := range cases {
			code := Generate(category)
			assert.Equal(t, prefix, code[:2], "category %s", category)
		}
	})

	t.Run("should fall back to SO for unknown categories", func(t *testing.T) {
		code := Generate(repository.Category("BOGUS"))
		assert.True(t, strings.HasPrefix(code, "SO-"))
	})

	t.Run("should embed today's date", func(t *testing.T) {
		code := Generate(repository.CategoryTrash)
		assert.Equal(t, time.Now().Format("20060102"), strings.Split(code, "-")[1])
	})

	t.Run("should never emit ambiguous characters", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			code := Generate(repository.CategoryOther)
			random := strings.Split(code, "-")[2]
			assert.NotContains(t, random, "I")
			assert.NotContains(t, random, "O")
			assert.NotContains(t, random, "0")
			assert.NotContains(t, random, "1")
		}
	})
}

func TestParse(t *testing.T) {
	t.Run("should round trip generated codes", func(t *testing.T) {
		for _, category := range []repository.Category{
			repository.CategoryTrash,
			repository.CategoryDamage,
			repository.CategoryVandalism,
			repository.CategoryOther,
		} {
			code := Generate(category)
			ticket, ok := Parse(code)
			require.True(t, ok, "code %s", code)
			assert.Equal(t, category, ticket.Category)
			assert.Equal(t, time.Now().Format("20060102"), ticket.Date.Format("20060102"))
		}
	})

	t.Run("should parse a known code", func(t *testing.T) {
		ticket, ok := Parse("SC-20260830-K7TQM")
		require.True(t, ok)
		assert.Equal(t, repository.CategoryDamage, ticket.Category)
		assert.Equal(t, 2026, ticket.Date.Year())
		assert.Equal(t, time.August, ticket.Date.Month())
		assert.Equal(t, 30, ticket.Date.Day())
		assert.Equal(t, "K7TQM", ticket.Code)
	})

	t.Run("should map unknown prefixes to OTHER", func(t *testing.T) {
		ticket, ok := Parse("XX-20260830-K7TQM")
		require.True(t, ok)
		assert.Equal(t, repository.CategoryOther, ticket.Category)
	})

	t.Run("should reject malformed codes", func(t *testing.T) {
		malformed := []string{
			"",
			"SC-20260830",             // missing random segment
			"SC-20260830-K7TQM-EXTRA", // too many segments
			"S-20260830-K7TQM",        // short prefix
			"sc-20260830-K7TQM",       // lowercase prefix
			"SC-2026083-K7TQM",        // short date
			"SC-20261341-K7TQM",       // month 13 does not exist
			"SC-20260830-K7TQ",        // short code
			"SC-20260830-K7TQ0",       // 0 is not in the alphabet
			"SC-20260830-K7TQI",       // I is not in the alphabet
		}
		for _, code := range malformed {
			_, ok := Parse(code)
			assert.False(t, ok, "code %q", code)
		}
	})
}
