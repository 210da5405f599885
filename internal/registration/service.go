package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/agencia-vs/acreditaciones/internal/audit"
	"github.com/agencia-vs/acreditaciones/internal/billing"
	"github.com/agencia-vs/acreditaciones/internal/event"
	"github.com/agencia-vs/acreditaciones/internal/notify"
	"github.com/agencia-vs/acreditaciones/internal/profile"
	"github.com/agencia-vs/acreditaciones/internal/rules"
	"github.com/agencia-vs/acreditaciones/internal/team"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
	"github.com/agencia-vs/acreditaciones/internal/token"
)

var (
	ErrEventClosed        = errors.New("event is not accepting registrations")
	ErrProfileIncomplete  = errors.New("profile is incomplete")
	ErrNotOnRoster        = errors.New("profile is not on the submitter's team")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrReasonRequired     = errors.New("a rejection reason is required")
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrCredentialMismatch = errors.New("credential belongs to another organization")
)

// IncompleteProfileError lists the fields a profile is missing. It matches
// ErrProfileIncomplete.
type IncompleteProfileError struct {
	ProfileID uuid.UUID
	Missing   []string
}

func (e *IncompleteProfileError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrProfileIncomplete, strings.Join(e.Missing, ", "))
}

func (e *IncompleteProfileError) Unwrap() error { return ErrProfileIncomplete }

// PlanLimits reports the limits of a tenant's plan.
type PlanLimits interface {
	Limits(ctx context.Context, tenantID uuid.UUID) (*billing.Limits, error)
}

// Notifier delivers templated emails.
type Notifier interface {
	Send(ctx context.Context, tenantID uuid.UUID, kind, to string, data notify.Data) error
	Compose(ctx context.Context, tenantID uuid.UUID, kind, to string, data notify.Data) (*notify.Message, error)
	SendBatch(ctx context.Context, msgs []*notify.Message) error
}

// Deps are the collaborators of a Service. Notifier and Audit may be nil.
type Deps struct {
	Registrations Repository
	Events        event.Repository
	Profiles      profile.Repository
	Team          team.Repository
	Rules         rules.Repository
	Limits        PlanLimits
	Notifier      Notifier
	Audit         audit.Logger
	Tokens        *token.Issuer
	// PublicURL is the base of links included in emails.
	PublicURL string
}

// Service implements the accreditation workflow.
type Service struct {
	repo      Repository
	events    event.Repository
	profiles  profile.Repository
	team      team.Repository
	rules     rules.Repository
	limits    PlanLimits
	notifier  Notifier
	audit     audit.Logger
	tokens    *token.Issuer
	publicURL string
	now       func() time.Time
}

// NewService creates a registration Service.
func NewService(d Deps) *Service {
	return &Service{
		repo:      d.Registrations,
		events:    d.Events,
		profiles:  d.Profiles,
		team:      d.Team,
		rules:     d.Rules,
		limits:    d.Limits,
		notifier:  d.Notifier,
		audit:     d.Audit,
		tokens:    d.Tokens,
		publicURL: strings.TrimRight(d.PublicURL, "/"),
		now:       time.Now,
	}
}

// SubmitResult is the outcome for one subject of a submission.
type SubmitResult struct {
	ProfileID    uuid.UUID
	Registration *Registration
	Err          error
}

// Submit registers subjects for an event on behalf of submitter. Each subject
// must be the submitter or on the submitter's team. An empty subject list
// registers the submitter. Failures are reported per subject; the returned
// error covers problems with the event itself.
func (s *Service) Submit(ctx context.Context, t *tenant.Tenant, eventID uuid.UUID, submitter *profile.Profile, subjectIDs []uuid.UUID, actor audit.Actor) ([]SubmitResult, error) {
	e, err := s.events.GetByID(ctx, t.ID, eventID)
	if err != nil {
		return nil, err
	}
	if !e.AcceptingRegistrations(s.now()) {
		return nil, ErrEventClosed
	}

	if len(subjectIDs) == 0 {
		subjectIDs = []uuid.UUID{submitter.ID}
	}

	limits, err := s.limits.Limits(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("loading plan limits: %w", err)
	}
	active, err := s.repo.CountActive(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	quotaRules, err := s.rules.ListQuota(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	zoneRules, err := s.rules.ListZone(ctx, e.ID)
	if err != nil {
		return nil, err
	}

	results := make([]SubmitResult, 0, len(subjectIDs))
	for _, subjectID := range subjectIDs {
		if active >= limits.MaxRegistrationsPerEvent {
			results = append(results, SubmitResult{
				ProfileID: subjectID,
				Err: fmt.Errorf("%w: %d registrations per event on plan %s",
					billing.ErrPlanLimitReached, limits.MaxRegistrationsPerEvent, limits.PlanCode),
			})
			continue
		}

		reg, err := s.submitOne(ctx, t, e, submitter, subjectID, quotaRules, zoneRules, actor)
		results = append(results, SubmitResult{ProfileID: subjectID, Registration: reg, Err: err})
		if err == nil {
			active++
		}
	}
	return results, nil
}

func (s *Service) submitOne(ctx context.Context, t *tenant.Tenant, e *event.Event, submitter *profile.Profile,
	subjectID uuid.UUID, quotaRules []rules.QuotaRule, zoneRules []rules.ZoneRule, actor audit.Actor) (*Registration, error) {
	subject := submitter
	if subjectID != submitter.ID {
		ok, err := s.team.IsMember(ctx, submitter.ID, subjectID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotOnRoster
		}
		subject, err = s.profiles.GetByID(ctx, subjectID)
		if err != nil {
			return nil, err
		}
	}

	if missing := profile.Missing(subject); len(missing) > 0 {
		return nil, &IncompleteProfileError{ProfileID: subject.ID, Missing: missing}
	}

	if err := s.checkQuota(ctx, e.ID, quotaRules, subject.MediaType, subject.Organization); err != nil {
		return nil, err
	}

	reg := &Registration{
		TenantID:     t.ID,
		EventID:      e.ID,
		ProfileID:    subject.ID,
		Organization: strings.TrimSpace(subject.Organization),
		MediaType:    strings.TrimSpace(subject.MediaType),
		JobTitle:     strings.TrimSpace(subject.JobTitle),
		Zone:         zonePtr(rules.ResolveZone(zoneRules, subject.JobTitle, subject.MediaType)),
	}
	submitterID := submitter.ID
	reg.SubmittedByProfileID = &submitterID
	if err := s.repo.Create(ctx, reg); err != nil {
		return nil, err
	}
	reg.Profile = subject

	s.record(ctx, actor, t.ID, audit.ActionRegistrationSubmitted, reg, map[string]any{
		"eventId": e.ID.String(), "profileId": subject.ID.String(),
	})
	s.mail(ctx, t, e, subject, notify.KindReceived, notify.Data{
		Link: s.link(t, "/me/registrations"),
	})
	return reg, nil
}

// checkQuota fails with ErrQuotaExceeded when the matching rule has no
// approved places left.
func (s *Service) checkQuota(ctx context.Context, eventID uuid.UUID, quotaRules []rules.QuotaRule, mediaType, organization string) error {
	rule := rules.MatchQuota(quotaRules, mediaType, organization)
	if rule == nil {
		return nil
	}
	used, err := s.repo.CountApproved(ctx, eventID, rule.MediaType, rule.Organization)
	if err != nil {
		return err
	}
	if check := rules.Evaluate(rule, used); check.Exceeded {
		return fmt.Errorf("%w: %d of %d for %s", ErrQuotaExceeded, check.Used, rule.MaxRegistrations, quotaLabel(rule))
	}
	return nil
}

func quotaLabel(r *rules.QuotaRule) string {
	if r.Organization == "" {
		return r.MediaType
	}
	return r.MediaType + "/" + r.Organization
}

// Decide approves or rejects a registration. Approval re-checks the quota
// and re-resolves the zone against the event's current rules.
func (s *Service) Decide(ctx context.Context, t *tenant.Tenant, id uuid.UUID, approve bool, reason string, actor audit.Actor) (*Registration, error) {
	updated, n, err := s.decide(ctx, t, id, approve, reason, actor)
	if err != nil {
		return nil, err
	}
	if n != nil {
		s.send(ctx, t, *n)
	}
	return updated, nil
}

// decide applies a decision and returns the notice for the registrant, which
// is nil when the profile could not be loaded.
func (s *Service) decide(ctx context.Context, t *tenant.Tenant, id uuid.UUID, approve bool, reason string, actor audit.Actor) (*Registration, *notice, error) {
	reason = strings.TrimSpace(reason)
	if !approve && reason == "" {
		return nil, nil, ErrReasonRequired
	}

	reg, err := s.repo.GetByID(ctx, t.ID, id)
	if err != nil {
		return nil, nil, err
	}

	target := StatusRejected
	if approve {
		target = StatusApproved
	}
	if reg.Status == target || reg.Status == StatusCancelled || reg.CheckedInAt != nil {
		return nil, nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, reg.Status, target)
	}

	e, err := s.events.GetByID(ctx, t.ID, reg.EventID)
	if err != nil {
		return nil, nil, err
	}

	d := Decision{Status: target, Zone: reg.Zone, DecidedBy: actor.UserID, From: reg.Status}
	if approve {
		quotaRules, err := s.rules.ListQuota(ctx, e.ID)
		if err != nil {
			return nil, nil, err
		}
		if err := s.checkQuota(ctx, e.ID, quotaRules, reg.MediaType, reg.Organization); err != nil {
			return nil, nil, err
		}
		zoneRules, err := s.rules.ListZone(ctx, e.ID)
		if err != nil {
			return nil, nil, err
		}
		d.Zone = zonePtr(rules.ResolveZone(zoneRules, reg.JobTitle, reg.MediaType))
	} else {
		d.Reason = &reason
	}

	updated, err := s.repo.UpdateDecision(ctx, t.ID, id, d)
	if err != nil {
		return nil, nil, err
	}

	action := audit.ActionRegistrationRejected
	kind := notify.KindRejected
	data := notify.Data{Reason: reason}
	if approve {
		action = audit.ActionRegistrationApproved
		kind = notify.KindApproved
		data = notify.Data{Link: s.link(t, "/me/registrations/"+updated.ID.String()+"/credential")}
		if updated.Zone != nil {
			data.Zone = *updated.Zone
		}
	}
	s.record(ctx, actor, t.ID, action, updated, map[string]any{"from": reg.Status, "reason": reason})

	p, err := s.profiles.GetByID(ctx, updated.ProfileID)
	if err != nil {
		slog.Warn("failed to load profile for decision email", "registrationId", updated.ID, "error", err)
		return updated, nil, nil
	}
	n := noticeFor(t, e, p, kind, data)
	return updated, &n, nil
}

// BulkResult reports which registrations a bulk decision changed.
type BulkResult struct {
	Succeeded []uuid.UUID
	Failed    map[uuid.UUID]error
}

// BulkDecide applies Decide to every id. One failure does not stop the
// batch; the returned error combines every failure. Registrant emails are
// sent together once every decision is stored.
func (s *Service) BulkDecide(ctx context.Context, t *tenant.Tenant, ids []uuid.UUID, approve bool, reason string, actor audit.Actor) (*BulkResult, error) {
	if !approve && strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	result := &BulkResult{Succeeded: []uuid.UUID{}, Failed: map[uuid.UUID]error{}}
	var errs error
	notices := make([]notice, 0, len(ids))
	for _, id := range ids {
		_, n, err := s.decide(ctx, t, id, approve, reason, actor)
		if err != nil {
			result.Failed[id] = err
			errs = multierr.Append(errs, fmt.Errorf("registration %s: %w", id, err))
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
		if n != nil {
			notices = append(notices, *n)
		}
	}
	s.sendBatch(ctx, t, notices)
	return result, errs
}

// Cancel withdraws a registration on behalf of its registrant or the manager
// who submitted it.
func (s *Service) Cancel(ctx context.Context, tenantID, profileID, id uuid.UUID, actor audit.Actor) (*Registration, error) {
	reg, err := s.repo.Cancel(ctx, tenantID, id, profileID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, tenantID, audit.ActionRegistrationCancelled, reg, nil)
	return reg, nil
}

// Credential returns a signed QR token for an approved registration that
// belongs to, or was submitted by, profileID.
func (s *Service) Credential(ctx context.Context, tenantID, profileID, id uuid.UUID) (string, *Registration, error) {
	reg, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return "", nil, err
	}
	if !ownedBy(reg, profileID) {
		return "", nil, ErrRegistrationNotFound
	}
	if reg.Status != StatusApproved {
		return "", nil, ErrNotApproved
	}
	raw, err := s.tokens.IssueCredential(reg.ID, reg.EventID, reg.TenantID)
	if err != nil {
		return "", nil, err
	}
	return raw, reg, nil
}

func ownedBy(reg *Registration, profileID uuid.UUID) bool {
	return reg.ProfileID == profileID ||
		(reg.SubmittedByProfileID != nil && *reg.SubmittedByProfileID == profileID)
}

// CheckIn verifies a scanned credential and records the entry. A second scan
// of the same credential fails with a CheckedInError.
func (s *Service) CheckIn(ctx context.Context, tenantID uuid.UUID, rawToken string, actor audit.Actor) (*Registration, error) {
	cred, err := s.tokens.ParseCredential(strings.TrimSpace(rawToken))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if cred.TenantID != tenantID {
		return nil, ErrCredentialMismatch
	}

	reg, err := s.repo.MarkCheckedIn(ctx, tenantID, cred.RegistrationID, actor.UserID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, tenantID, audit.ActionRegistrationCheckedIn, reg, map[string]any{
		"eventId": reg.EventID.String(),
	})
	return reg, nil
}

// QuotaUsage evaluates every quota rule of an event against its approved
// registrations, in priority order.
func (s *Service) QuotaUsage(ctx context.Context, tenantID, eventID uuid.UUID) ([]rules.QuotaCheck, error) {
	if _, err := s.events.GetByID(ctx, tenantID, eventID); err != nil {
		return nil, err
	}
	quotaRules, err := s.rules.ListQuota(ctx, eventID)
	if err != nil {
		return nil, err
	}

	checks := make([]rules.QuotaCheck, 0, len(quotaRules))
	for i := range quotaRules {
		rule := quotaRules[i]
		used, err := s.repo.CountApproved(ctx, eventID, rule.MediaType, rule.Organization)
		if err != nil {
			return nil, err
		}
		checks = append(checks, rules.Evaluate(&rule, used))
	}
	return checks, nil
}

func (s *Service) record(ctx context.Context, actor audit.Actor, tenantID uuid.UUID, action string, reg *Registration, metadata map[string]any) {
	if s.audit == nil {
		return
	}
	entry := actor.Entry(tenantID, action, "registration", reg.ID.String())
	entry.Metadata = metadata
	if action == audit.ActionRegistrationCheckedIn || action == audit.ActionRegistrationSubmitted {
		entry.IdempotencyKey = audit.Key(action, reg.ID.String(), reg.UpdatedAt.UTC().Format(time.RFC3339Nano))
	}
	if _, err := s.audit.Log(ctx, entry); err != nil {
		slog.Error("failed to write audit log", "action", action, "registrationId", reg.ID, "error", err)
	}
}

// mail sends a notification. Delivery failures are logged and never fail the
// operation that triggered them.
// notice is an email to a registrant that has not been rendered yet.
type notice struct {
	kind string
	to   string
	data notify.Data
}

func noticeFor(t *tenant.Tenant, e *event.Event, p *profile.Profile, kind string, data notify.Data) notice {
	data.TenantName = t.Name
	data.PrimaryColor = t.PrimaryColor
	data.FirstName = p.FirstName
	data.LastName = p.LastName
	data.Email = p.Email
	data.EventName = e.Name
	data.EventDate = e.StartsAt.Format("02-01-2006 15:04")
	data.Venue = e.Venue
	return notice{kind: kind, to: p.Email, data: data}
}

func (s *Service) mail(ctx context.Context, t *tenant.Tenant, e *event.Event, p *profile.Profile, kind string, data notify.Data) {
	s.send(ctx, t, noticeFor(t, e, p, kind, data))
}

func (s *Service) send(ctx context.Context, t *tenant.Tenant, n notice) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, t.ID, n.kind, n.to, n.data); err != nil {
		slog.Warn("failed to send notification", "kind", n.kind, "to", n.to, "tenantId", t.ID, "error", err)
	}
}

// sendBatch renders every notice and delivers them in one batch. Messages
// that fail to render are skipped.
func (s *Service) sendBatch(ctx context.Context, t *tenant.Tenant, notices []notice) {
	if s.notifier == nil || len(notices) == 0 {
		return
	}
	msgs := make([]*notify.Message, 0, len(notices))
	for _, n := range notices {
		msg, err := s.notifier.Compose(ctx, t.ID, n.kind, n.to, n.data)
		if err != nil {
			slog.Warn("failed to render notification", "kind", n.kind, "to", n.to, "tenantId", t.ID, "error", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	if err := s.notifier.SendBatch(ctx, msgs); err != nil {
		slog.Warn("failed to send notifications", "tenantId", t.ID,
			"failed", len(multierr.Errors(err)), "total", len(msgs), "error", err)
	}
}

func (s *Service) link(t *tenant.Tenant, path string) string {
	return s.publicURL + "/t/" + t.Slug + path
}

func zonePtr(zone string) *string {
	if zone == "" {
		return nil
	}
	return &zone
}

// UsageCounter counts a tenant's events and registrations for plan metering.
type UsageCounter struct {
	Events        event.Repository
	Registrations Repository
}

// CountEvents returns the number of events the tenant has.
func (c UsageCounter) CountEvents(ctx context.Context, tenantID uuid.UUID) (int, error) {
	return c.Events.Count(ctx, tenantID)
}

// CountRegistrationsSince returns registrations received since a time.
func (c UsageCounter) CountRegistrationsSince(ctx context.Context, tenantID uuid.UUID, since time.Time) (int, error) {
	return c.Registrations.CountByTenantSince(ctx, tenantID, since)
}
