// Package token issues and verifies the signed tokens used outside API-key
// authentication: magic links, registrant sessions and QR credentials.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds carried in the typ claim.
const (
	KindMagicLink  = "magic_link"
	KindSession    = "session"
	KindCredential = "credential"
)

const issuer = "acreditaciones"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrWrongKind    = errors.New("token kind mismatch")
	ErrTokenUsed    = errors.New("token already used")
)

// Claims is the payload shared by every token kind. Fields not relevant to a
// kind are left empty.
type Claims struct {
	Kind           string `json:"typ"`
	Email          string `json:"email,omitempty"`
	ProfileID      string `json:"pid,omitempty"`
	RegistrationID string `json:"rid,omitempty"`
	EventID        string `json:"eid,omitempty"`
	TenantID       string `json:"tid,omitempty"`
	jwt.RegisteredClaims
}

// MagicLink is a verified sign-in link. ID is unique per issued link.
type MagicLink struct {
	Email     string
	ID        string
	ExpiresAt time.Time
}

// Session identifies an authenticated registrant.
type Session struct {
	ProfileID uuid.UUID
	Email     string
	ExpiresAt time.Time
}

// Credential identifies an approved registration encoded in a QR code.
type Credential struct {
	RegistrationID uuid.UUID
	EventID        uuid.UUID
	TenantID       uuid.UUID
	IssuedAt       time.Time
}

// Issuer signs and verifies tokens with a shared HMAC secret.
type Issuer struct {
	secret        []byte
	magicLinkTTL  time.Duration
	sessionTTL    time.Duration
	credentialTTL time.Duration
	now           func() time.Time
}

// NewIssuer creates an Issuer.
func NewIssuer(secret string, magicLinkTTL, sessionTTL, credentialTTL time.Duration) *Issuer {
	return &Issuer{
		secret:        []byte(secret),
		magicLinkTTL:  magicLinkTTL,
		sessionTTL:    sessionTTL,
		credentialTTL: credentialTTL,
		now:           time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// IssueMagicLink returns a short-lived token proving control of email.
func (i *Issuer) IssueMagicLink(email string) (string, error) {
	return i.sign(Claims{Kind: KindMagicLink, Email: email}, email, i.magicLinkTTL)
}

// ParseMagicLink verifies a magic-link token. It does not check whether the
// link was already used; see RedemptionStore.
func (i *Issuer) ParseMagicLink(raw string) (*MagicLink, error) {
	c, err := i.parse(raw, KindMagicLink)
	if err != nil {
		return nil, err
	}
	if c.Email == "" || c.ID == "" || c.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	return &MagicLink{Email: c.Email, ID: c.ID, ExpiresAt: c.ExpiresAt.Time}, nil
}

// IssueSession returns a registrant session token.
func (i *Issuer) IssueSession(profileID uuid.UUID, email string) (string, error) {
	return i.sign(Claims{
		Kind:      KindSession,
		Email:     email,
		ProfileID: profileID.String(),
	}, profileID.String(), i.sessionTTL)
}

// ParseSession verifies a session token.
func (i *Issuer) ParseSession(raw string) (*Session, error) {
	c, err := i.parse(raw, KindSession)
	if err != nil {
		return nil, err
	}
	profileID, err := uuid.Parse(c.ProfileID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	s := &Session{ProfileID: profileID, Email: c.Email}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s, nil
}

// IssueCredential returns the token printed in a registration's QR code.
func (i *Issuer) IssueCredential(registrationID, eventID, tenantID uuid.UUID) (string, error) {
	return i.sign(Claims{
		Kind:           KindCredential,
		RegistrationID: registrationID.String(),
		EventID:        eventID.String(),
		TenantID:       tenantID.String(),
	}, registrationID.String(), i.credentialTTL)
}

// ParseCredential verifies a QR credential token.
func (i *Issuer) ParseCredential(raw string) (*Credential, error) {
	c, err := i.parse(raw, KindCredential)
	if err != nil {
		return nil, err
	}

	regID, err1 := uuid.Parse(c.RegistrationID)
	eventID, err2 := uuid.Parse(c.EventID)
	tenantID, err3 := uuid.Parse(c.TenantID)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, ErrInvalidToken
	}

	cred := &Credential{RegistrationID: regID, EventID: eventID, TenantID: tenantID}
	if c.IssuedAt != nil {
		cred.IssuedAt = c.IssuedAt.Time
	}
	return cred, nil
}

func (i *Issuer) sign(c Claims, subject string, ttl time.Duration) (string, error) {
	now := i.now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", c.Kind, err)
	}
	return signed, nil
}

func (i *Issuer) parse(raw, kind string) (*Claims, error) {
	var c Claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if c.Kind != kind {
		return nil, ErrWrongKind
	}
	return &c, nil
}
