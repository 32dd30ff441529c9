package templates

import "github.com/unclebandit/smscampaigns/internal/model"

// Template is a canned message skeleton offered in the campaign wizard.
type Template struct {
	ID             string             `json:"id"`
	Category       model.CampaignType `json:"category"`
	Name           string             `json:"name"`
	Body           string             `json:"body"`
	RequiredFields []string           `json:"required_fields"`
	OptionalFields []string           `json:"optional_fields"`
	Variables      []string           `json:"variables"`
}

var catalog = build([]Template{
	{
		ID:             "academic-results",
		Category:       model.TypeAcademic,
		Name:           "Term results",
		Body:           "Hello, {first_name} {last_name} ({class}) finished the term with an average of {average}/20.",
		RequiredFields: []string{"first_name", "last_name", "phone", "class", "average"},
	},
	{
		ID:             "academic-absence",
		Category:       model.TypeAcademic,
		Name:           "Absence notice",
		Body:           "Dear parent, {full_name} from {class} was absent today. Please contact the school office.",
		RequiredFields: []string{"first_name", "last_name", "phone", "class"},
		OptionalFields: []string{"average"},
	},
	{
		ID:             "academic-meeting",
		Category:       model.TypeAcademic,
		Name:           "Parent meeting",
		Body:           "Hello, the {class} parent-teacher meeting for {first_name} takes place this Friday at 5pm.",
		RequiredFields: []string{"first_name", "phone", "class"},
		OptionalFields: []string{"last_name"},
	},
	{
		ID:             "marketing-promo",
		Category:       model.TypeMarketing,
		Name:           "Promotion",
		Body:           "Hi {first_name}, enjoy 20% off this week only. Reply STOP to opt out.",
		RequiredFields: []string{"phone"},
		OptionalFields: []string{"first_name", "last_name"},
	},
	{
		ID:             "marketing-event",
		Category:       model.TypeMarketing,
		Name:           "Event invitation",
		Body:           "{first_name}, you are invited to our launch event on Saturday. Show this SMS at the entrance.",
		RequiredFields: []string{"phone"},
		OptionalFields: []string{"first_name"},
	},
	{
		ID:             "transactional-reminder",
		Category:       model.TypeTransactional,
		Name:           "Appointment reminder",
		Body:           "Hello {full_name}, this is a reminder of your appointment tomorrow.",
		RequiredFields: []string{"phone"},
		OptionalFields: []string{"first_name", "last_name"},
	},
	{
		ID:             "transactional-confirmation",
		Category:       model.TypeTransactional,
		Name:           "Order confirmation",
		Body:           "Hi {first_name}, your order has been confirmed. We will text {phone} when it ships.",
		RequiredFields: []string{"phone"},
		OptionalFields: []string{"first_name"},
	},
})

func build(ts []Template) []Template {
	for i := range ts {
		ts[i].Variables = Variables(ts[i].Body)
		if ts[i].OptionalFields == nil {
			ts[i].OptionalFields = []string{}
		}
	}
	return ts
}

// All returns a copy of the catalog.
func All() []Template {
	out := make([]Template, len(catalog))
	copy(out, catalog)
	return out
}

func ByCategory(category model.CampaignType) []Template {
	out := []Template{}
	for _, t := range catalog {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

func Get(id string) (Template, bool) {
	for _, t := range catalog {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}
