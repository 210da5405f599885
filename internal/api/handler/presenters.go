package handler

import (
	"github.com/agencia-vs/acreditaciones/internal/event"
	"github.com/agencia-vs/acreditaciones/internal/profile"
	"github.com/agencia-vs/acreditaciones/internal/registration"
	"github.com/agencia-vs/acreditaciones/internal/team"
	"github.com/agencia-vs/acreditaciones/internal/tenant"
)

type tenantResponse struct {
	ID           string  `json:"id"`
	Slug         string  `json:"slug"`
	Name         string  `json:"name"`
	CustomDomain *string `json:"customDomain"`
	DomainStatus string  `json:"domainStatus"`
	PrimaryColor string  `json:"primaryColor"`
	HasLogo      bool    `json:"hasLogo"`
	Active       bool    `json:"active"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

func toTenantResponse(t *tenant.Tenant) tenantResponse {
	return tenantResponse{
		ID:           t.ID.String(),
		Slug:         t.Slug,
		Name:         t.Name,
		CustomDomain: t.CustomDomain,
		DomainStatus: t.DomainStatus,
		PrimaryColor: t.PrimaryColor,
		HasLogo:      t.LogoPath != nil && *t.LogoPath != "",
		Active:       t.Active,
		CreatedAt:    formatTime(t.CreatedAt),
		UpdatedAt:    formatTime(t.UpdatedAt),
	}
}

type eventResponse struct {
	ID                     string  `json:"id"`
	Name                   string  `json:"name"`
	Venue                  string  `json:"venue"`
	Description            string  `json:"description"`
	StartsAt               string  `json:"startsAt"`
	EndsAt                 *string `json:"endsAt"`
	RegistrationOpensAt    *string `json:"registrationOpensAt"`
	RegistrationClosesAt   *string `json:"registrationClosesAt"`
	Status                 string  `json:"status"`
	AcceptingRegistrations bool    `json:"acceptingRegistrations"`
	CreatedAt              string  `json:"createdAt"`
	UpdatedAt              string  `json:"updatedAt"`
}

func toEventResponse(e *event.Event, accepting bool) eventResponse {
	return eventResponse{
		ID:                     e.ID.String(),
		Name:                   e.Name,
		Venue:                  e.Venue,
		Description:            e.Description,
		StartsAt:               formatTime(e.StartsAt),
		EndsAt:                 formatTimePtr(e.EndsAt),
		RegistrationOpensAt:    formatTimePtr(e.RegistrationOpensAt),
		RegistrationClosesAt:   formatTimePtr(e.RegistrationClosesAt),
		Status:                 e.Status,
		AcceptingRegistrations: accepting,
		CreatedAt:              formatTime(e.CreatedAt),
		UpdatedAt:              formatTime(e.UpdatedAt),
	}
}

type profileResponse struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	RUT          *string  `json:"rut"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	Phone        string   `json:"phone"`
	Organization string   `json:"organization"`
	MediaType    string   `json:"mediaType"`
	JobTitle     string   `json:"jobTitle"`
	HasPhoto     bool     `json:"hasPhoto"`
	Complete     bool     `json:"complete"`
	Missing      []string `json:"missing"`
	UpdatedAt    string   `json:"updatedAt"`
}

func toProfileResponse(p *profile.Profile) profileResponse {
	missing := profile.Missing(p)
	if missing == nil {
		missing = []string{}
	}
	return profileResponse{
		ID:           p.ID.String(),
		Email:        p.Email,
		RUT:          p.RUT,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Phone:        p.Phone,
		Organization: p.Organization,
		MediaType:    p.MediaType,
		JobTitle:     p.JobTitle,
		HasPhoto:     p.PhotoPath != nil && *p.PhotoPath != "",
		Complete:     len(missing) == 0,
		Missing:      missing,
		UpdatedAt:    formatTime(p.UpdatedAt),
	}
}

type memberResponse struct {
	ID        string          `json:"id"`
	Profile   profileResponse `json:"profile"`
	CreatedAt string          `json:"createdAt"`
}

func toMemberResponse(m *team.Member) memberResponse {
	resp := memberResponse{
		ID:        m.ID.String(),
		CreatedAt: formatTime(m.CreatedAt),
	}
	if m.Profile != nil {
		resp.Profile = toProfileResponse(m.Profile)
	} else {
		resp.Profile = profileResponse{ID: m.MemberProfileID.String(), Missing: []string{}}
	}
	return resp
}

type registrantSummary struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	RUT       *string `json:"rut"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Phone     string  `json:"phone"`
	HasPhoto  bool    `json:"hasPhoto"`
}

type registrationResponse struct {
	ID                   string             `json:"id"`
	EventID              string             `json:"eventId"`
	ProfileID            string             `json:"profileId"`
	SubmittedByProfileID *string            `json:"submittedByProfileId"`
	Organization         string             `json:"organization"`
	MediaType            string             `json:"mediaType"`
	JobTitle             string             `json:"jobTitle"`
	Zone                 *string            `json:"zone"`
	Status               string             `json:"status"`
	RejectionReason      *string            `json:"rejectionReason"`
	DecidedAt            *string            `json:"decidedAt"`
	CheckedInAt          *string            `json:"checkedInAt"`
	CreatedAt            string             `json:"createdAt"`
	UpdatedAt            string             `json:"updatedAt"`
	Registrant           *registrantSummary `json:"registrant,omitempty"`
}

func toRegistrationResponse(reg *registration.Registration) registrationResponse {
	resp := registrationResponse{
		ID:                   reg.ID.String(),
		EventID:              reg.EventID.String(),
		ProfileID:            reg.ProfileID.String(),
		SubmittedByProfileID: uuidString(reg.SubmittedByProfileID),
		Organization:         reg.Organization,
		MediaType:            reg.MediaType,
		JobTitle:             reg.JobTitle,
		Zone:                 reg.Zone,
		Status:               reg.Status,
		RejectionReason:      reg.RejectionReason,
		DecidedAt:            formatTimePtr(reg.DecidedAt),
		CheckedInAt:          formatTimePtr(reg.CheckedInAt),
		CreatedAt:            formatTime(reg.CreatedAt),
		UpdatedAt:            formatTime(reg.UpdatedAt),
	}
	if p := reg.Profile; p != nil {
		resp.Registrant = &registrantSummary{
			ID:        p.ID.String(),
			Email:     p.Email,
			RUT:       p.RUT,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Phone:     p.Phone,
			HasPhoto:  p.PhotoPath != nil && *p.PhotoPath != "",
		}
	}
	return resp
}

func toRegistrationResponses(regs []registration.Registration) []registrationResponse {
	items := make([]registrationResponse, 0, len(regs))
	for i := range regs {
		items = append(items, toRegistrationResponse(&regs[i]))
	}
	return items
}
