package templates

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/unclebandit/smscampaigns/internal/model"
)

// Placeholders is the fixed substitution table, in the order they are documented to users.
var Placeholders = []string{
	"first_name",
	"last_name",
	"full_name",
	"phone",
	"class",
	"average",
}

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Render replaces every known {placeholder} in body with the contact's value.
// Unknown tokens are left as they are and substituted values are never re-scanned.
func Render(body string, c model.Contact) string {
	return strings.NewReplacer(
		"{first_name}", c.FirstName,
		"{last_name}", c.LastName,
		"{full_name}", c.FullName(),
		"{phone}", c.Phone,
		"{class}", c.Class,
		"{average}", formatAverage(c.Average),
	).Replace(body)
}

// Variables lists the distinct placeholder names used in body, in order of first appearance.
func Variables(body string) []string {
	seen := map[string]bool{}
	vars := []string{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		vars = append(vars, m[1])
	}
	return vars
}

// Unknown returns the placeholders in body that Render will not substitute.
func Unknown(body string) []string {
	known := map[string]bool{}
	for _, p := range Placeholders {
		known[p] = true
	}
	unknown := []string{}
	for _, v := range Variables(body) {
		if !known[v] {
			unknown = append(unknown, v)
		}
	}
	return unknown
}

func formatAverage(avg *float64) string {
	if avg == nil {
		return ""
	}
	return strconv.FormatFloat(*avg, 'f', -1, 64)
}
