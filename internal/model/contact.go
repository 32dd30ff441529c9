package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

// ValidPhone reports whether phone is an international number without separators.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// NormalizePhone drops the separators people commonly type inside numbers.
func NormalizePhone(raw string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '-', '(', ')', '/', '\u00a0', '\t':
			return -1
		}
		return r
	}, raw)
}

type Contact struct {
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Phone     string            `json:"phone"`
	Class     string            `json:"class,omitempty"`
	Average   *float64          `json:"average,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func (c Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Contacts is the ordered recipient list of a campaign, stored as a JSONB document.
type Contacts []Contact

func (cs Contacts) Value() (driver.Value, error) {
	if cs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(cs)
}

func (cs *Contacts) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*cs = Contacts{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("contacts: unsupported scan type %T", src)
	}
	if len(data) == 0 {
		*cs = Contacts{}
		return nil
	}
	return json.Unmarshal(data, cs)
}

// Fields is the free-form column map of a stored contact.
type Fields map[string]string

func (f Fields) Value() (driver.Value, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

func (f *Fields) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = nil
		return nil
	case []byte:
		return json.Unmarshal(v, f)
	case string:
		return json.Unmarshal([]byte(v), f)
	}
	return errors.New("fields: unsupported scan type")
}

// StoredContact is a contact saved in one of the owner's groups.
type StoredContact struct {
	ID      uuid.UUID `db:"id" json:"id"`
	OwnerID string    `db:"owner_id" json:"-"`
	Group   string    `db:"group_name" json:"group"`
	Contact
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Group is a named partition of an owner's contacts.
type Group struct {
	Name         string `json:"name"`
	ContactCount int    `json:"contact_count"`
}
