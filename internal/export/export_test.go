package export_test

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencia-vs/acreditaciones/internal/export"
	"github.com/agencia-vs/acreditaciones/internal/profile"
	"github.com/agencia-vs/acreditaciones/internal/registration"
)

func keys(cols []export.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Key
	}
	return out
}

func TestFilterColumns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		requested []string
		want      []string
	}{
		{"keeps requested order", []string{"email", "rut"}, []string{"email", "rut"}},
		{"drops unknown", []string{"rut", "password", "zone"}, []string{"rut", "zone"}},
		{"drops duplicates", []string{"zone", "zone", " zone "}, []string{"zone"}},
		{"nothing known falls back to all", []string{"nope"}, keys(export.Columns)},
		{"empty falls back to all", nil, keys(export.Columns)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, keys(export.FilterColumns(tt.requested)))
		})
	}
}

func TestParseColumns(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"firstName", "status"}, keys(export.ParseColumns("firstName, status,bogus")))
	assert.Len(t, export.ParseColumns(" "), len(export.Columns))
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	rut := "12345678-5"
	zone := "Tribuna"
	checked := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)
	regs := []registration.Registration{
		{
			Organization: "Diario Sur", MediaType: "Prensa", JobTitle: "Editor", Zone: &zone,
			Status: registration.StatusApproved, CheckedInAt: &checked,
			Profile: &profile.Profile{RUT: &rut, FirstName: "Ñandú", LastName: "Pérez", Email: "a@b.cl"},
		},
		{
			Organization: "=HYPERLINK(\"x\")", MediaType: "Radio", Status: registration.StatusPending,
			Profile: &profile.Profile{Phone: "+56 9 1234 5678", FirstName: "-1+1"},
		},
	}

	var buf bytes.Buffer
	cols := export.FilterColumns([]string{"rut", "firstName", "organization", "zone", "checkedInAt"})
	require.NoError(t, export.WriteCSV(&buf, cols, regs))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\ufeff"))

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, "\ufeff"))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"RUT", "Nombre", "Medio", "Zona", "Ingreso"}, records[0])
	assert.Equal(t, []string{"12345678-5", "Ñandú", "Diario Sur", "Tribuna", "2026-03-01 18:30:00"}, records[1])
	assert.Equal(t, []string{"", "'-1+1", "'=HYPERLINK(\"x\")", "", ""}, records[2])

	buf.Reset()
	require.NoError(t, export.WriteCSV(&buf, export.FilterColumns([]string{"phone"}), regs[1:]))
	assert.Contains(t, buf.String(), "+56 9 1234 5678")
	assert.NotContains(t, buf.String(), "'+56")
}

func TestFilename(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "final-copa-chile-20260504.csv", export.Filename("Final Copa Chile", now))
	assert.Equal(t, "acreditaciones-20260504.csv", export.Filename("¡!", now))
}
