package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencia-vs/acreditaciones/internal/rules"
)

func TestMatchQuota(t *testing.T) {
	t.Parallel()

	rs := []rules.QuotaRule{
		{MediaType: "TV", Organization: "", MaxRegistrations: 10, Priority: 10},
		{MediaType: "tv", Organization: "Canal 13", MaxRegistrations: 4, Priority: 1},
		{MediaType: "radio", MaxRegistrations: 6, Priority: 5},
	}

	tests := []struct {
		name         string
		mediaType    string
		organization string
		wantMax      int
		wantNil      bool
	}{
		{"specific organization wins by priority", "tv", "Canal 13", 4, false},
		{"case and spaces folded", " TV ", " canal 13", 4, false},
		{"empty organization matches any", "tv", "Mega", 10, false},
		{"other media type", "radio", "Bio Bio", 6, false},
		{"no rule", "prensa escrita", "El Mercurio", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rules.MatchQuota(rs, tt.mediaType, tt.organization)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantMax, got.MaxRegistrations)
		})
	}
}

func TestMatchQuota_TiesKeepInputOrder(t *testing.T) {
	t.Parallel()
	rs := []rules.QuotaRule{
		{MediaType: "tv", MaxRegistrations: 1},
		{MediaType: "tv", MaxRegistrations: 2},
	}
	got := rules.MatchQuota(rs, "tv", "x")
	require.NotNil(t, got)
	assert.Equal(t, 1, got.MaxRegistrations)
	assert.Nil(t, rules.MatchQuota(nil, "tv", "x"))
}

func TestResolveZone(t *testing.T) {
	t.Parallel()

	rs := []rules.ZoneRule{
		{MatchField: rules.MatchMediaType, MatchValue: "TV", Zone: "tribuna", Priority: 0},
		{MatchField: rules.MatchJobTitle, MatchValue: "Fotógrafo", Zone: "cancha", Priority: 5},
		{MatchField: rules.MatchJobTitle, MatchValue: "fotógrafo", Zone: "foso", Priority: 9},
		{MatchField: rules.MatchMediaType, MatchValue: "radio", Zone: "cabinas", Priority: 1},
	}

	tests := []struct {
		name      string
		jobTitle  string
		mediaType string
		want      string
	}{
		{"job title beats media type", "fotógrafo", "tv", "cancha"},
		{"job title case folded", "FOTÓGRAFO", "", "cancha"},
		{"falls back to media type", "periodista", "TV", "tribuna"},
		{"second media type rule", "relator", "radio", "cabinas"},
		{"no match is empty", "periodista", "prensa escrita", ""},
		{"partial values do not match", "fotógrafo jefe", "tv digital", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, rules.ResolveZone(rs, tt.jobTitle, tt.mediaType))
		})
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	rule := &rules.QuotaRule{MaxRegistrations: 3}
	tests := []struct {
		used      int
		remaining int
		exceeded  bool
	}{
		{0, 3, false},
		{2, 1, false},
		{3, 0, true},
		{5, 0, true},
	}
	for _, tt := range tests {
		c := rules.Evaluate(rule, tt.used)
		assert.Equal(t, tt.used, c.Used)
		assert.Equal(t, tt.remaining, c.Remaining, "used=%d", tt.used)
		assert.Equal(t, tt.exceeded, c.Exceeded, "used=%d", tt.used)
		assert.Same(t, rule, c.Rule)
	}

	zero := rules.Evaluate(&rules.QuotaRule{MaxRegistrations: 0}, 0)
	assert.True(t, zero.Exceeded)
	assert.Equal(t, 0, zero.Remaining)
}

func TestKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, rules.Key("  Prensa Escrita "), rules.Key("prensa escrita"))
	assert.NotEqual(t, rules.Key("prensa"), rules.Key("prensa escrita"))
	assert.Equal(t, "strasse medien", rules.Key("Straße Medien"))
	assert.NotEqual(t, rules.Key("Televisión"), rules.Key("television"))
}
