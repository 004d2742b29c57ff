// Package customer reads and writes the per-tenant customer session a
// storefront login leaves behind: a bearer token plus a cached profile.
package customer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/storage"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
)

// Profile is the customer record cached at login.
type Profile struct {
	ID        int64  `json:"id,omitempty"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone,omitempty"`
}

// FullName joins the first and last names.
func (p *Profile) FullName() string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Session is the auth state handed to order submission.
type Session struct {
	Token   string   `json:"token,omitempty"`
	Profile *Profile `json:"profile,omitempty"`
}

// IsAuthenticated reports whether a bearer token is present.
func (s Session) IsAuthenticated() bool {
	return s.Token != ""
}

// TokenExpired reports whether the token is a JWT whose exp claim is already
// in the past. The signature is not checked; the backend stays the authority.
// Opaque or claim-less tokens are never considered expired.
func (s Session) TokenExpired(now time.Time) bool {
	if s.Token == "" {
		return false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !now.Before(claims.ExpiresAt.Time)
}

func TokenKey(tenant string) string {
	return fmt.Sprintf("customer_token_%s", tenant)
}

func ProfileKey(tenant string) string {
	return fmt.Sprintf("customer_data_%s", tenant)
}

// Store persists customer sessions in a KV.
type Store struct {
	kv   storage.KV
	logg *logger.Logger
}

func NewStore(kv storage.KV, logg *logger.Logger) *Store {
	return &Store{kv: kv, logg: logg}
}

// Load returns the tenant's session. A missing token yields a guest session;
// an unreadable profile is dropped while the token is kept.
func (s *Store) Load(ctx context.Context, tenant string) (Session, error) {
	token, err := s.kv.Get(ctx, TokenKey(tenant))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return Session{}, nil
	case err != nil:
		return Session{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer token")
	}
	sess := Session{Token: strings.TrimSpace(token)}

	raw, err := s.kv.Get(ctx, ProfileKey(tenant))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return sess, nil
	case err != nil:
		return Session{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer profile")
	}

	var profile Profile
	if err := json.Unmarshal([]byte(raw), &profile); err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(s.logg.WithTenant(ctx, tenant), "error", err.Error()), "discarding malformed customer profile")
		}
		return sess, nil
	}
	sess.Profile = &profile
	return sess, nil
}

// Save stores the token and profile of a freshly logged-in customer. Both
// keys are written in one batch, atomically on stores that support it.
func (s *Store) Save(ctx context.Context, tenant string, sess Session) error {
	token := strings.TrimSpace(sess.Token)
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}
	profileOp := storage.DeleteOp(ProfileKey(tenant))
	if sess.Profile != nil {
		payload, err := json.Marshal(sess.Profile)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode customer profile")
		}
		profileOp = storage.SetOp(ProfileKey(tenant), string(payload))
	}
	if err := storage.Apply(ctx, s.kv, storage.SetOp(TokenKey(tenant), token), profileOp); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store customer session")
	}
	return nil
}

// Drop removes both session keys (logout).
func (s *Store) Drop(ctx context.Context, tenant string) error {
	if err := storage.Apply(ctx, s.kv, storage.DeleteOp(TokenKey(tenant)), storage.DeleteOp(ProfileKey(tenant))); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drop customer session")
	}
	return nil
}
