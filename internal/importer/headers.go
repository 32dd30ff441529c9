package importer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/unclebandit/smscampaigns/internal/model"
)

const (
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
	FieldFullName  = "full_name"
	FieldPhone     = "phone"
	FieldClass     = "class"
	FieldAverage   = "average"
)

// headerAliases maps folded header text to a canonical field.
var headerAliases = map[string]string{
	"first name": FieldFirstName,
	"firstname":  FieldFirstName,
	"given name": FieldFirstName,
	"prenom":     FieldFirstName,
	"prenoms":    FieldFirstName,

	"last name":      FieldLastName,
	"lastname":       FieldLastName,
	"surname":        FieldLastName,
	"family name":    FieldLastName,
	"nom":            FieldLastName,
	"nom de famille": FieldLastName,

	"name":        FieldFullName,
	"full name":   FieldFullName,
	"fullname":    FieldFullName,
	"nom complet": FieldFullName,

	"phone":               FieldPhone,
	"phone number":        FieldPhone,
	"telephone":           FieldPhone,
	"tel":                 FieldPhone,
	"mobile":              FieldPhone,
	"portable":            FieldPhone,
	"gsm":                 FieldPhone,
	"numero":              FieldPhone,
	"numero de telephone": FieldPhone,
	"msisdn":              FieldPhone,

	"class":  FieldClass,
	"classe": FieldClass,
	"niveau": FieldClass,

	"average":          FieldAverage,
	"moyenne":          FieldAverage,
	"moyenne generale": FieldAverage,
	"note":             FieldAverage,
	"grade":            FieldAverage,
}

var requiredColumns = map[model.CampaignType][]string{
	model.TypeAcademic:      {FieldFirstName, FieldLastName, FieldPhone, FieldClass, FieldAverage},
	model.TypeMarketing:     {FieldPhone},
	model.TypeTransactional: {FieldPhone},
}

// RequiredColumns returns the canonical columns an import of the given category must carry.
func RequiredColumns(category model.CampaignType) []string {
	cols, ok := requiredColumns[category]
	if !ok {
		return []string{FieldPhone}
	}
	return cols
}

// knownClasses maps folded, space-free class labels to their canonical spelling.
var knownClasses = map[string]string{
	"cp":        "CP",
	"ce1":       "CE1",
	"ce2":       "CE2",
	"cm1":       "CM1",
	"cm2":       "CM2",
	"6eme":      "6eme",
	"6e":        "6eme",
	"5eme":      "5eme",
	"5e":        "5eme",
	"4eme":      "4eme",
	"4e":        "4eme",
	"3eme":      "3eme",
	"3e":        "3eme",
	"2nde":      "2nde",
	"seconde":   "2nde",
	"1ere":      "1ere",
	"premiere":  "1ere",
	"terminale": "Terminale",
	"tle":       "Terminale",
}

// fold lower-cases s and strips diacritics: "Prénom" -> "prenom".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

// normalizeHeader folds a header cell and collapses separators to single spaces.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.', ' ':
			return ' '
		}
		return r
	}, fold(h))
	return strings.Join(strings.Fields(h), " ")
}

// canonicalField resolves a raw header to a canonical field, or "" for free-form columns.
func canonicalField(header string) string {
	return headerAliases[normalizeHeader(header)]
}

func canonicalClass(raw string) (string, bool) {
	key := strings.ReplaceAll(fold(raw), " ", "")
	class, ok := knownClasses[key]
	return class, ok
}
