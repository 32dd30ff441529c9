// Package importer turns uploaded CSV or Excel contact lists into validated contacts.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/smscampaigns/internal/errors"
	"github.com/unclebandit/smscampaigns/internal/logger"
	"github.com/unclebandit/smscampaigns/internal/model"
)

const (
	xlsxMIME   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxAverage = 20.0
)

// RowError explains why a data row was left out of the import.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type Result struct {
	Contacts []model.Contact `json:"contacts"`
	Skipped  []RowError      `json:"skipped"`
	Total    int             `json:"total"`
}

type Importer struct {
	Logger *logger.Logger
}

func New(l *logger.Logger) *Importer {
	return &Importer{Logger: l}
}

// Import parses an uploaded contact list for a campaign category.
// Invalid rows are skipped; the import only fails on a structural problem or when no row is valid.
func (im *Importer) Import(r io.Reader, filename string, category model.CampaignType) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, appErrors.NewValidation("file is empty")
	}

	var rows []sheetRow
	if isSpreadsheet(data, filename) {
		rows, err = readExcel(data)
	} else {
		rows, err = readCSV(data)
	}
	if err != nil {
		return nil, err
	}

	res, err := im.mapRows(rows, category)
	if err != nil {
		return nil, err
	}
	im.Logger.Info("Contact import finished",
		zap.String("file", filename),
		zap.String("category", string(category)),
		zap.Int("rows", res.Total),
		zap.Int("imported", len(res.Contacts)),
		zap.Int("skipped", len(res.Skipped)))
	return res, nil
}

// sheetRow is one record with the 1-based line it came from.
type sheetRow struct {
	line  int
	cells []string
}

func isSpreadsheet(data []byte, filename string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return true
	}
	return mimetype.Detect(data).Is(xlsxMIME)
}

func readCSV(data []byte) ([]sheetRow, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows := []sheetRow{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, appErrors.NewValidation("malformed CSV: %v", err)
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, sheetRow{line: line, cells: record})
	}
	return rows, nil
}

// sniffDelimiter accepts semicolon-separated exports when the header has no comma.
func sniffDelimiter(data []byte) rune {
	header := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		header = data[:i]
	}
	if !bytes.ContainsRune(header, ',') && bytes.ContainsRune(header, ';') {
		return ';'
	}
	return ','
}

func (im *Importer) mapRows(rows []sheetRow, category model.CampaignType) (*Result, error) {
	if len(rows) == 0 {
		return nil, appErrors.NewValidation("file is empty")
	}

	columns := mapHeader(rows[0].cells)
	if missing := missingColumns(columns, category); len(missing) > 0 {
		return nil, appErrors.NewValidation("missing required column(s): %s", strings.Join(missing, ", "))
	}

	res := &Result{Contacts: []model.Contact{}, Skipped: []RowError{}}
	seenPhones := map[string]int{}
	for _, row := range rows[1:] {
		if blank(row.cells) {
			continue
		}
		res.Total++

		contact, err := buildContact(columns, row.cells, category)
		if err == nil {
			if first, dup := seenPhones[contact.Phone]; dup {
				err = fmt.Errorf("duplicate phone %s (first seen on line %d)", contact.Phone, first)
			}
		}
		if err != nil {
			im.Logger.Warn("Skipping contact row", zap.Int("line", row.line), zap.String("reason", err.Error()))
			res.Skipped = append(res.Skipped, RowError{Line: row.line, Reason: err.Error()})
			continue
		}
		seenPhones[contact.Phone] = row.line
		res.Contacts = append(res.Contacts, contact)
	}

	if len(res.Contacts) == 0 {
		return nil, appErrors.NewValidation("no valid contacts found (%d row(s) rejected)", len(res.Skipped))
	}
	return res, nil
}

// column is a header cell resolved to either a canonical field or a free-form key.
type column struct {
	index int
	field string
	key   string
}

func mapHeader(header []string) []column {
	columns := []column{}
	taken := map[string]bool{}
	for i, h := range header {
		field := canonicalField(h)
		key := normalizeHeader(h)
		if key == "" {
			continue
		}
		name := field
		if name == "" {
			name = key
		}
		if taken[name] {
			continue
		}
		taken[name] = true
		columns = append(columns, column{index: i, field: field, key: key})
	}
	return columns
}

func missingColumns(columns []column, category model.CampaignType) []string {
	present := map[string]bool{}
	for _, c := range columns {
		if c.field != "" {
			present[c.field] = true
		}
	}
	// a single "name" column stands in for first and last name.
	if present[FieldFullName] {
		present[FieldFirstName] = true
		present[FieldLastName] = true
	}
	missing := []string{}
	for _, f := range RequiredColumns(category) {
		if !present[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

func buildContact(columns []column, cells []string, category model.CampaignType) (model.Contact, error) {
	var (
		c        model.Contact
		fullName string
	)
	for _, col := range columns {
		value := cell(cells, col.index)
		switch col.field {
		case FieldFirstName:
			c.FirstName = value
		case FieldLastName:
			c.LastName = value
		case FieldFullName:
			fullName = value
		case FieldPhone:
			c.Phone = model.NormalizePhone(value)
		case FieldClass:
			c.Class = value
		case FieldAverage:
			if value == "" {
				continue
			}
			// "note" and "grade" are free text outside academic lists.
			if category != model.TypeAcademic {
				if c.Fields == nil {
					c.Fields = map[string]string{}
				}
				c.Fields[col.key] = value
				continue
			}
			avg, err := parseAverage(value)
			if err != nil {
				return c, err
			}
			c.Average = &avg
		default:
			if value == "" {
				continue
			}
			if c.Fields == nil {
				c.Fields = map[string]string{}
			}
			c.Fields[col.key] = value
		}
	}

	if fullName != "" && c.FirstName == "" && c.LastName == "" {
		c.FirstName, c.LastName = splitName(fullName)
	}

	if c.Phone == "" {
		return c, errors.New("missing phone number")
	}
	if !model.ValidPhone(c.Phone) {
		return c, fmt.Errorf("invalid phone number %q", c.Phone)
	}

	if category == model.TypeAcademic {
		if c.FirstName == "" || c.LastName == "" {
			return c, errors.New("missing student name")
		}
		class, ok := canonicalClass(c.Class)
		if !ok {
			return c, fmt.Errorf("unknown class %q", c.Class)
		}
		c.Class = class
		if c.Average == nil {
			return c, errors.New("missing average")
		}
	}
	return c, nil
}

func parseAverage(raw string) (float64, error) {
	avg, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil || math.IsNaN(avg) {
		return 0, fmt.Errorf("average %q is not a number", raw)
	}
	if avg < 0 || avg > maxAverage {
		return 0, fmt.Errorf("average %v out of range [0, 20]", avg)
	}
	return avg, nil
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func cell(cells []string, i int) string {
	if i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
