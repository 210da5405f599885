package registration_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencia-vs/acreditaciones/internal/audit"
	"github.com/agencia-vs/acreditaciones/internal/billing"
	"github.com/agencia-vs/acreditaciones/internal/event"
	"github.com/agencia-vs/acreditaciones/internal/notify"
	"github.com/agencia-vs/acreditaciones/internal/profile"
	"github.com/agencia-vs/acreditaciones/internal/registration"
	"github.com/agencia-vs/acreditaciones/internal/rules"
	"github.com/agencia-vs/acreditaciones/internal/team"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
	"github.com/agencia-vs/acreditaciones/internal/token"
)

// --- fakes ---

type memRegistrations struct {
	regs map[uuid.UUID]*registration.Registration
}

func newMemRegistrations() *memRegistrations {
	return &memRegistrations{regs: map[uuid.UUID]*registration.Registration{}}
}

func (m *memRegistrations) Create(_ context.Context, r *registration.Registration) error {
	for _, existing := range m.regs {
		if existing.EventID == r.EventID && existing.ProfileID == r.ProfileID && existing.Status != registration.StatusCancelled {
			return registration.ErrDuplicateRegistration
		}
	}
	r.ID = uuid.New()
	r.Status = registration.StatusPending
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.regs[r.ID] = &cp
	return nil
}

func (m *memRegistrations) GetByID(_ context.Context, tenantID, id uuid.UUID) (*registration.Registration, error) {
	r, ok := m.regs[id]
	if !ok || r.TenantID != tenantID {
		return nil, registration.ErrRegistrationNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRegistrations) List(_ context.Context, tenantID uuid.UUID, _ registration.Filter) ([]registration.Registration, error) {
	var out []registration.Registration
	for _, r := range m.regs {
		if r.TenantID == tenantID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRegistrations) CountApproved(_ context.Context, eventID uuid.UUID, mediaType, organization string) (int, error) {
	n := 0
	for _, r := range m.regs {
		if r.EventID != eventID || r.Status != registration.StatusApproved {
			continue
		}
		if rules.Key(r.MediaType) != rules.Key(mediaType) {
			continue
		}
		if rules.Key(organization) != "" && rules.Key(r.Organization) != rules.Key(organization) {
			continue
		}
		n++
	}
	return n, nil
}

func (m *memRegistrations) CountActive(_ context.Context, eventID uuid.UUID) (int, error) {
	n := 0
	for _, r := range m.regs {
		if r.EventID == eventID && r.Status != registration.StatusCancelled {
			n++
		}
	}
	return n, nil
}

func (m *memRegistrations) CountByTenantSince(_ context.Context, tenantID uuid.UUID, since time.Time) (int, error) {
	n := 0
	for _, r := range m.regs {
		if r.TenantID == tenantID && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memRegistrations) UpdateDecision(_ context.Context, tenantID, id uuid.UUID, d registration.Decision) (*registration.Registration, error) {
	r, ok := m.regs[id]
	if !ok || r.TenantID != tenantID {
		return nil, registration.ErrRegistrationNotFound
	}
	if r.Status != d.From || r.CheckedInAt != nil {
		return nil, registration.ErrInvalidTransition
	}
	now := time.Now()
	r.Status, r.RejectionReason, r.Zone, r.DecidedBy, r.DecidedAt = d.Status, d.Reason, d.Zone, d.DecidedBy, &now
	cp := *r
	return &cp, nil
}

func (m *memRegistrations) MarkCheckedIn(_ context.Context, tenantID, id uuid.UUID, by *uuid.UUID) (*registration.Registration, error) {
	r, ok := m.regs[id]
	if !ok || r.TenantID != tenantID {
		return nil, registration.ErrRegistrationNotFound
	}
	if r.CheckedInAt != nil {
		cp := *r
		return nil, &registration.CheckedInError{Registration: &cp}
	}
	if r.Status != registration.StatusApproved {
		return nil, registration.ErrNotApproved
	}
	now := time.Now()
	r.CheckedInAt, r.CheckedInBy = &now, by
	cp := *r
	return &cp, nil
}

func (m *memRegistrations) Cancel(_ context.Context, tenantID, id, profileID uuid.UUID) (*registration.Registration, error) {
	r, ok := m.regs[id]
	if !ok || r.TenantID != tenantID || r.ProfileID != profileID {
		return nil, registration.ErrRegistrationNotFound
	}
	r.Status = registration.StatusCancelled
	cp := *r
	return &cp, nil
}

type fakeEvents struct {
	event.Repository
	events map[uuid.UUID]*event.Event
}

func (f *fakeEvents) GetByID(_ context.Context, tenantID, id uuid.UUID) (*event.Event, error) {
	e, ok := f.events[id]
	if !ok || e.TenantID != tenantID {
		return nil, event.ErrEventNotFound
	}
	return e, nil
}

func (f *fakeEvents) Count(_ context.Context, tenantID uuid.UUID) (int, error) {
	n := 0
	for _, e := range f.events {
		if e.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

type fakeProfiles struct {
	profile.Repository
	profiles map[uuid.UUID]*profile.Profile
}

func (f *fakeProfiles) GetByID(_ context.Context, id uuid.UUID) (*profile.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	return p, nil
}

type fakeTeam struct {
	team.Repository
	members map[[2]uuid.UUID]bool
}

func (f *fakeTeam) IsMember(_ context.Context, manager, member uuid.UUID) (bool, error) {
	return f.members[[2]uuid.UUID{manager, member}], nil
}

type fakeRules struct {
	rules.Repository
	quota []rules.QuotaRule
	zone  []rules.ZoneRule
}

func (f *fakeRules) ListQuota(context.Context, uuid.UUID) ([]rules.QuotaRule, error) { return f.quota, nil }
func (f *fakeRules) ListZone(context.Context, uuid.UUID) ([]rules.ZoneRule, error) { return f.zone, nil }

type fixedLimits struct {
	limits billing.Limits
}

func (f fixedLimits) Limits(context.Context, uuid.UUID) (*billing.Limits, error) {
	l := f.limits
	return &l, nil
}

type sentMail struct {
	kind string
	to   string
	data notify.Data
}

type recordingNotifier struct {
	sent    []sentMail
	batches [][]*notify.Message
	err     error
}

func (n *recordingNotifier) Send(_ context.Context, _ uuid.UUID, kind, to string, data notify.Data) error {
	n.sent = append(n.sent, sentMail{kind: kind, to: to, data: data})
	return n.err
}

func (n *recordingNotifier) Compose(_ context.Context, _ uuid.UUID, kind, to string, data notify.Data) (*notify.Message, error) {
	return &notify.Message{To: to, Subject: kind + ": " + data.EventName}, nil
}

func (n *recordingNotifier) SendBatch(_ context.Context, msgs []*notify.Message) error {
	n.batches = append(n.batches, msgs)
	return n.err
}

type recordingAudit struct {
	entries []*audit.Entry
}

func (a *recordingAudit) Log(_ context.Context, e *audit.Entry) (bool, error) {
	a.entries = append(a.entries, e)
	return true, nil
}

// --- fixture ---

type fixture struct {
	svc      *registration.Service
	regs     *memRegistrations
	rules    *fakeRules
	team     *fakeTeam
	profiles *fakeProfiles
	events   *fakeEvents
	notifier *recordingNotifier
	audit    *recordingAudit
	tokens   *token.Issuer
	tenant   *tenant.Tenant
	event    *event.Event
	manager  *profile.Profile
	staffID  uuid.UUID
}

func strPtr(s string) *string { return &s }

func completeProfile(email, mediaType, org, jobTitle string) *profile.Profile {
	return &profile.Profile{
		ID: uuid.New(), Email: email, RUT: strPtr("12345678-5"),
		FirstName: "Ana", LastName: "Rojas", Organization: org, MediaType: mediaType, JobTitle: jobTitle,
	}
}

func newFixture(t *testing.T, maxPerEvent int) *fixture {
	t.Helper()
	tn := &tenant.Tenant{ID: uuid.New(), Slug: "club", Name: "Club Deportivo", PrimaryColor: "#000000"}
	ev := &event.Event{ID: uuid.New(), TenantID: tn.ID, Name: "Final", StartsAt: time.Now().Add(48 * time.Hour), Status: event.StatusOpen}
	manager := completeProfile("editor@diario.cl", "Prensa escrita", "Diario Sur", "Editor")

	f := &fixture{
		regs:     newMemRegistrations(),
		rules:    &fakeRules{},
		team:     &fakeTeam{members: map[[2]uuid.UUID]bool{}},
		profiles: &fakeProfiles{profiles: map[uuid.UUID]*profile.Profile{manager.ID: manager}},
		events:   &fakeEvents{events: map[uuid.UUID]*event.Event{ev.ID: ev}},
		notifier: &recordingNotifier{},
		audit:    &recordingAudit{},
		tokens:   token.NewIssuer("test-secret", time.Minute, time.Hour, time.Hour),
		tenant:   tn,
		event:    ev,
		manager:  manager,
		staffID:  uuid.New(),
	}
	f.svc = registration.NewService(registration.Deps{
		Registrations: f.regs,
		Events:        f.events,
		Profiles:      f.profiles,
		Team:          f.team,
		Rules:         f.rules,
		Limits:        fixedLimits{billing.Limits{PlanCode: "pro", MaxEvents: 10, MaxRegistrationsPerEvent: maxPerEvent}},
		Notifier:      f.notifier,
		Audit:         f.audit,
		Tokens:        f.tokens,
		PublicURL:     "https://acreditaciones.cl/",
	})
	return f
}

func (f *fixture) addMember(p *profile.Profile) {
	f.profiles.profiles[p.ID] = p
	f.team.members[[2]uuid.UUID{f.manager.ID, p.ID}] = true
}

func (f *fixture) staff() audit.Actor {
	id := f.staffID
	return audit.Actor{UserID: &id}
}

func (f *fixture) submitSelf(t *testing.T) *registration.Registration {
	t.Helper()
	results, err := f.svc.Submit(context.Background(), f.tenant, f.event.ID, f.manager, nil, audit.Actor{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	return results[0].Registration
}

// --- Submit ---

func TestSubmit_Self(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100)
	f.rules.zone = []rules.ZoneRule{
		{MatchField: rules.MatchMediaType, MatchValue: "prensa escrita", Zone: "Tribuna"},
		{MatchField: rules.MatchJobTitle, MatchValue: "EDITOR", Zone: "Palco"},
	}

	reg := f.submitSelf(t)

	assert.Equal(t, registration.StatusPending, reg.Status)
	assert.Equal(t, f.manager.ID, reg.ProfileID)
	require.NotNil(t, reg.Zone)
	assert.Equal(t, "Palco", *reg.Zone)
	assert.Equal(t, "Diario Sur", reg.Organization)

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notify.KindReceived, f.notifier.sent[0].kind)
	assert.Equal(t, "editor@diario.cl", f.notifier.sent[0].to)
	assert.Equal(t, "Club Deportivo", f.notifier.sent[0].data.TenantName)
	assert.Equal(t, "https://acreditaciones.cl/t/club/me/registrations", f.notifier.sent[0].data.Link)

	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, audit.ActionRegistrationSubmitted, f.audit.entries[0].Action)
}

func TestSubmit_EmailFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100)
	f.notifier.err = errors.New("smtp down")

	reg := f.submitSelf(t)
	assert.NotEqual(t, uuid.Nil, reg.ID)
}

func TestSubmit_EventErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, f.tenant, uuid.New(), f.manager, nil, audit.Actor{})
	assert.ErrorIs(t, err, event.ErrEventNotFound)

	f.event.Status = event.StatusClosed
	_, err = f.svc.Submit(ctx, f.tenant, f.event.ID, f.manager, nil, audit.Actor{})
	assert.ErrorIs(t, err, registration.ErrEventClosed)

	f.event.Status = event.StatusOpen
	closes := time.Now().Add(-time.Minute)
	f.event.RegistrationClosesAt = &closes
	_, err = f.svc.Submit(ctx, f.tenant, f.event.ID, f.manager, nil, audit.Actor{})
	assert.ErrorIs(t, err, registration.ErrEventClosed)
}

func TestSubmit_PerSubjectFailures(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100)

	member := completeProfile("foto@diario.cl", "Fotografía", "Diario Sur", "Fotógrafo")
	f.addMember(member)
	incomplete := &profile.Profile{ID: uuid.New(), Email: "nuevo@diario.cl", FirstName: "Luis"}
	f.addMember(incomplete)
	stranger := completeProfile("otro@medio.cl", "Radio", "Radio Uno", "Locutor")
	f.profiles.profiles[stranger.ID] = stranger

	results, err := f.svc.Submit(context.Background(), f.tenant, f.event.ID, f.manager,
		[]uuid.UUID{member.ID, incomplete.ID, stranger.ID}, audit.Actor{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	require.NotNil(t, results[0].Registration.SubmittedByProfileID)
	assert.Equal(t, f.manager.ID, *results[0].Registration.SubmittedByProfileID)

	assert.ErrorIs(t, results[1].Err, registration.ErrProfileIncomplete)
	var incErr *registration.IncompleteProfileError
	require.ErrorAs(t, results[1].Err, &incErr)
	assert.Equal(t, []string{"rut", "lastName", "organization", "mediaType", "jobTitle"}, incErr.Missing)

	assert.ErrorIs(t, results[2].Err, registration.ErrNotOnRoster)
}

func TestSubmit_Duplicate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100)
	f.submitSelf(t)

	results, err := f.svc.Submit(context.Background(), f.tenant, f.event.ID, f.manager, nil, audit.Actor{})
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, registration.ErrDuplicateRegistration)
}

func TestSubmit_QuotaCountsApprovedOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100)
	f.rules.quota = []rules.QuotaRule{{ID: uuid.New(), MediaType: "Prensa Escrita", MaxRegistrations: 1}}

	first := f.submitSelf(t)

	// Pending registrations do not consume the quota.
	other := completeProfile("b@diario.cl", "prensa escrita", "Diario Norte", "Redactor")
	f.addMember(other)
	results, err := f.svc.Submit(context.Background(), f.tenant, f.event.ID, f.manager, []uuid.UUID{other.ID}, audit.Actor{})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)

	_, err = f.svc.Decide(context.Background(), f.tenant, first.ID, true, "", f.staff())
	require.NoError(t, err)

	third := completeProfile("c@diario.cl", "PRENSA ESCRITA", "Diario Este", "Redactor")
	f.addMember(third)
	results, err = f.svc.Submit(context.Background(), f.tenant, f.event.ID, f.manager, []uuid.UUID{third.ID}, audit.Actor{})
	require.NoError(t, err)
	assert.ErrorIs(t, results[0].Err, registration.ErrQuotaExceeded)
}

func TestSubmit_PlanLimit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 1)

	member := completeProfile("foto@diario.cl", "Fotografía", "Diario Sur", "Fotógrafo")
	f.addMember(member)

	results, err := f.svc.Submit(context.Background(), f.tenant, f.event.ID, f.manager,
		[]uuid.UUID{f.manager.ID, member.ID}, audit.Actor{})
	require.NoError(t, err)
	require.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, billing.ErrPlanLimitReached)
}

// --- Decide ---

func TestDecide_Approve(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100)
	reg := f.submitSelf(t)
	assert.Nil(t, reg.Zone)

	// Zone rules added after submission apply at approval.
	f.rules.zone = []rules.ZoneRule{{MatchField: rules.MatchMediaType, MatchValue: "Prensa escrita", Zone: "Tribuna"}}

	approved, err := f.svc.Decide(context.Background(), f.tenant, reg.ID, true, "", f.staff())
	require.NoError(t, err)
	assert.Equal(t, registration.StatusApproved, approved.Status)
	require.NotNil(t, approved.Zone)
	assert.Equal(t, "Tribuna", *approved.Zone)
	assert.Equal(t, &f.staffID, approved.DecidedBy)

	last := f.notifier.sent[len(f.notifier.sent)-1]
	assert.Equal(t, notify.KindApproved, last.kind)
	assert.Equal(t, "Tribuna", last.data.Zone)
	assert.Contains(t, last.data.Link, "/credential")

	_, err = f.svc.Decide(context.Background(), f.tenant, reg.ID, true, "", f.staff())
	assert.ErrorIs(t, err, registration.ErrInvalidTransition)
}

func TestDecide_ApproveRechecksQuota(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100)
	first := f.submitSelf(t)

	other := completeProfile("b@diario.cl", "Prensa escrita", "Diario Sur", "Redactor")
	f.addMember(other)
	results, err := f.svc.Submit(context.Background(), f.tenant, f.event.ID, f.manager, []uuid.UUID{other.ID}, audit.Actor{})
	require.NoError(t, err)
	second := results[0].Registration

	f.rules.quota = []rules.QuotaRule{{ID: uuid.New(), MediaType: "prensa escrita", Organization: "diario sur", MaxRegistrations: 1}}

	_, err = f.svc.Decide(context.Background(), f.tenant, first.ID, true, "", f.staff())
	require.NoError(t, err)
	_, err = f.svc.Decide(context.Background(), f.tenant, second.ID, true, "", f.staff())
	assert.ErrorIs(t, err, registration.ErrQuotaExceeded)
}

func TestDecide_Reject(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100)
	reg := f.submitSelf(t)

	_, err := f.svc.Decide(context.Background(), f.tenant, reg.ID, false, "  ", f.staff())
	assert.ErrorIs(t, err, registration.ErrReasonRequired)

	rejected, err := f.svc.Decide(context.Background(), f.tenant, reg.ID, false, "Cupos agotados", f.staff())
	require.NoError(t, err)
	assert.Equal(t, registration.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "Cupos agotados", *rejected.RejectionReason)

	last := f.notifier.sent[len(f.notifier.sent)-1]
	assert.Equal(t, notify.KindRejected, last.kind)
	assert.Equal(t, "Cupos agotados", last.data.Reason)
}

func TestDecide_OtherTenant(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100)
	reg := f.submitSelf(t)

	other := &tenant.Tenant{ID: uuid.New(), Slug: "otro"}
	_, err := f.svc.Decide(context.Background(), other, reg.ID, true, "", f.staff())
	assert.ErrorIs(t, err, registration.ErrRegistrationNotFound)
}

func TestBulkDecide(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100)
	reg := f.submitSelf(t)
	missing := uuid.New()

	sentBefore := len(f.notifier.sent)

	result, err := f.svc.BulkDecide(context.Background(), f.tenant, []uuid.UUID{reg.ID, missing}, true, "", f.staff())
	require.Error(t, err)
	assert.Equal(t, []uuid.UUID{reg.ID}, result.Succeeded)
	require.Contains(t, result.Failed, missing)
	assert.ErrorIs(t, result.Failed[missing], registration.ErrRegistrationNotFound)
	assert.ErrorIs(t, err, registration.ErrRegistrationNotFound)

	assert.Len(t, f.notifier.sent, sentBefore, "bulk decisions are mailed as one batch")
	require.Len(t, f.notifier.batches, 1)
	require.Len(t, f.notifier.batches[0], 1)
	assert.Equal(t, f.manager.Email, f.notifier.batches[0][0].To)
	assert.Equal(t, notify.KindApproved+": Final", f.notifier.batches[0][0].Subject)

	_, err = f.svc.BulkDecide(context.Background(), f.tenant, []uuid.UUID{reg.ID}, false, "", f.staff())
	assert.ErrorIs(t, err, registration.ErrReasonRequired)
}

// --- Credential and check-in ---

func TestCredentialAndCheckIn(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100)
	ctx := context.Background()
	reg := f.submitSelf(t)

	_, _, err := f.svc.Credential(ctx, f.tenant.ID, f.manager.ID, reg.ID)
	assert.ErrorIs(t, err, registration.ErrNotApproved)

	_, err = f.svc.Decide(ctx, f.tenant, reg.ID, true, "", f.staff())
	require.NoError(t, err)

	_, _, err = f.svc.Credential(ctx, f.tenant.ID, uuid.New(), reg.ID)
	assert.ErrorIs(t, err, registration.ErrRegistrationNotFound)

	raw, got, err := f.svc.Credential(ctx, f.tenant.ID, f.manager.ID, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, got.ID)

	_, err = f.svc.CheckIn(ctx, uuid.New(), raw, f.staff())
	assert.ErrorIs(t, err, registration.ErrCredentialMismatch)

	_, err = f.svc.CheckIn(ctx, f.tenant.ID, "not-a-token", f.staff())
	assert.ErrorIs(t, err, registration.ErrInvalidCredential)

	checked, err := f.svc.CheckIn(ctx, f.tenant.ID, raw, f.staff())
	require.NoError(t, err)
	require.NotNil(t, checked.CheckedInAt)

	_, err = f.svc.CheckIn(ctx, f.tenant.ID, raw, f.staff())
	assert.ErrorIs(t, err, registration.ErrAlreadyCheckedIn)
	var already *registration.CheckedInError
	require.ErrorAs(t, err, &already)
	assert.Equal(t, checked.CheckedInAt.Unix(), already.Registration.CheckedInAt.Unix())

	// A used credential can no longer be rejected.
	_, err = f.svc.Decide(ctx, f.tenant, reg.ID, false, "tarde", f.staff())
	assert.ErrorIs(t, err, registration.ErrInvalidTransition)
}

func TestCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100)
	reg := f.submitSelf(t)

	_, err := f.svc.Cancel(context.Background(), f.tenant.ID, uuid.New(), reg.ID, audit.Actor{})
	assert.ErrorIs(t, err, registration.ErrRegistrationNotFound)

	cancelled, err := f.svc.Cancel(context.Background(), f.tenant.ID, f.manager.ID, reg.ID, audit.Actor{ProfileID: &f.manager.ID})
	require.NoError(t, err)
	assert.Equal(t, registration.StatusCancelled, cancelled.Status)

	// The registrant can submit again after cancelling.
	f.submitSelf(t)
}

func TestQuotaUsage(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100)
	reg := f.submitSelf(t)
	f.rules.quota = []rules.QuotaRule{
		{ID: uuid.New(), MediaType: "Prensa escrita", MaxRegistrations: 3, Priority: 1},
		{ID: uuid.New(), MediaType: "Radio", MaxRegistrations: 2, Priority: 2},
	}
	_, err := f.svc.Decide(context.Background(), f.tenant, reg.ID, true, "", f.staff())
	require.NoError(t, err)

	checks, err := f.svc.QuotaUsage(context.Background(), f.tenant.ID, f.event.ID)
	require.NoError(t, err)
	require.Len(t, checks, 2)
	sort.Slice(checks, func(i, j int) bool { return checks[i].Rule.Priority < checks[j].Rule.Priority })
	assert.Equal(t, 1, checks[0].Used)
	assert.Equal(t, 2, checks[0].Remaining)
	assert.Equal(t, 0, checks[1].Used)
	assert.False(t, checks[1].Exceeded)

	_, err = f.svc.QuotaUsage(context.Background(), f.tenant.ID, uuid.New())
	assert.ErrorIs(t, err, event.ErrEventNotFound)
}

func TestUsageCounter(t *testing.T) {
	t.Parallel()
	f := newFixture(t, 100)
	f.submitSelf(t)

	counter := registration.UsageCounter{Events: f.events, Registrations: f.regs}
	events, err := counter.CountEvents(context.Background(), f.tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, events)

	regs, err := counter.CountRegistrationsSince(context.Background(), f.tenant.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, regs)
}
