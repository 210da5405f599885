// Package export writes registration lists as spreadsheet-friendly CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/agencia-vs/acreditaciones/internal/registration"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
)

// Column is an exportable registration attribute.
type Column struct {
	Key    string
	Header string
	Value  func(r *registration.Registration) string
}

const timeLayout = "2006-01-02 15:04:05"

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func profileField(f func(r *registration.Registration) string) func(r *registration.Registration) string {
	return func(r *registration.Registration) string {
		if r.Profile == nil {
			return ""
		}
		return f(r)
	}
}

// Columns lists every exportable column in default order.
var Columns = []Column{
	{"rut", "RUT", profileField(func(r *registration.Registration) string { return deref(r.Profile.RUT) })},
	{"firstName", "Nombre", profileField(func(r *registration.Registration) string { return r.Profile.FirstName })},
	{"lastName", "Apellido", profileField(func(r *registration.Registration) string { return r.Profile.LastName })},
	{"email", "Email", profileField(func(r *registration.Registration) string { return r.Profile.Email })},
	{"phone", "Teléfono", profileField(func(r *registration.Registration) string { return r.Profile.Phone })},
	{"organization", "Medio", func(r *registration.Registration) string { return r.Organization }},
	{"mediaType", "Tipo de medio", func(r *registration.Registration) string { return r.MediaType }},
	{"jobTitle", "Cargo", func(r *registration.Registration) string { return r.JobTitle }},
	{"zone", "Zona", func(r *registration.Registration) string { return deref(r.Zone) }},
	{"status", "Estado", func(r *registration.Registration) string { return r.Status }},
	{"checkedInAt", "Ingreso", func(r *registration.Registration) string { return formatTime(r.CheckedInAt) }},
	{"createdAt", "Fecha de solicitud", func(r *registration.Registration) string { return formatTime(&r.CreatedAt) }},
}

var columnsByKey = func() map[string]Column {
	m := make(map[string]Column, len(Columns))
	for _, c := range Columns {
		m[c.Key] = c
	}
	return m
}()

// FilterColumns keeps the known keys of requested in the order given,
// dropping unknown and repeated keys. It returns every column when nothing
// known was requested.
func FilterColumns(requested []string) []Column {
	seen := map[string]bool{}
	var out []Column
	for _, key := range requested {
		key = strings.TrimSpace(key)
		c, ok := columnsByKey[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	if len(out) == 0 {
		return append([]Column(nil), Columns...)
	}
	return out
}

// ParseColumns splits a comma-separated column list, as sent in a query string.
func ParseColumns(raw string) []Column {
	if strings.TrimSpace(raw) == "" {
		return FilterColumns(nil)
	}
	return FilterColumns(strings.Split(raw, ","))
}

// bom marks the output as UTF-8 for spreadsheet applications.
const bom = "\ufeff"

// WriteCSV writes a header row and one row per registration.
func WriteCSV(w io.Writer, columns []Column, regs []registration.Registration) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("writing byte order mark: %w", err)
	}

	cw := csv.NewWriter(w)
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.Header
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	record := make([]string, len(columns))
	for i := range regs {
		for j, c := range columns {
			record[j] = sanitize(c.Value(&regs[i]))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// sanitize neutralizes values a spreadsheet would evaluate as a formula.
// Signed numbers such as phone numbers are left alone.
func sanitize(v string) string {
	if v == "" {
		return v
	}
	switch v[0] {
	case '=', '@', '\t', '\r':
		return "'" + v
	case '+', '-':
		if strings.Trim(v[1:], "0123456789 ") != "" {
			return "'" + v
		}
	}
	return v
}

// Filename builds the download name for an event export.
func Filename(eventName string, now time.Time) string {
	name := tenant.Slugify(eventName)
	if name == "" {
		name = "acreditaciones"
	}
	return fmt.Sprintf("%s-%s.csv", name, now.UTC().Format("20060102"))
}
