package event_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/agencia-vs/acreditaciones/internal/event"
)

func TestAcceptingRegistrations(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 11, 15, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	tests := []struct {
		name   string
		status string
		opens  *time.Time
		closes *time.Time
		want   bool
	}{
		{"open without window", event.StatusOpen, nil, nil, true},
		{"open inside window", event.StatusOpen, &before, &after, true},
		{"open before window", event.StatusOpen, &after, nil, false},
		{"open after window", event.StatusOpen, nil, &before, false},
		{"closes exactly now", event.StatusOpen, nil, &now, false},
		{"opens exactly now", event.StatusOpen, &now, nil, true},
		{"draft", event.StatusDraft, nil, nil, false},
		{"closed", event.StatusClosed, &before, &after, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := &event.Event{Status: tt.status, RegistrationOpensAt: tt.opens, RegistrationClosesAt: tt.closes}
			assert.Equal(t, tt.want, e.AcceptingRegistrations(now))
		})
	}
}

func TestValidStatus(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"draft", "open", "closed"} {
		assert.True(t, event.ValidStatus(s), s)
	}
	assert.False(t, event.ValidStatus("archived"))
	assert.False(t, event.ValidStatus(""))
}
