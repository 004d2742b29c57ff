package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/customer"
	"github.com/angelmondragon/storefront-checkout/internal/storage"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type customerSessionRequest struct {
	Token   string            `json:"token" validate:"required"`
	Profile *customer.Profile `json:"profile"`
}

type customerSessionResponse struct {
	Authenticated bool              `json:"authenticated"`
	Profile       *customer.Profile `json:"profile,omitempty"`
}

func customerStore(kv storage.KV, deviceID string, logg *logger.Logger) *customer.Store {
	return customer.NewStore(storage.Scoped(kv, deviceID), logg)
}

// CustomerSessionGet reports whether the device holds a customer login.
func CustomerSessionGet(kv storage.KV, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := shopperFrom(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sess, err := customerStore(kv, who.deviceID, logg).Load(r.Context(), who.tenant)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, customerSessionResponse{Authenticated: sess.IsAuthenticated(), Profile: sess.Profile})
	}
}

// CustomerSessionPut stores the token the backend issued at login. The profile
// is refreshed from the backend when possible; the submitted one is kept when
// the lookup fails.
func CustomerSessionPut(kv storage.KV, profiles ProfileLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := shopperFrom(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload customerSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sess := customer.Session{
			Token:   payload.Token,
			Profile: refreshProfile(r.Context(), profiles, logg, who.tenant, payload.Token, payload.Profile),
		}
		if err := customerStore(kv, who.deviceID, logg).Save(r.Context(), who.tenant, sess); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, customerSessionResponse{Authenticated: true, Profile: sess.Profile})
	}
}

func refreshProfile(ctx context.Context, profiles ProfileLookup, logg *logger.Logger, tenant, token string, fallback *customer.Profile) *customer.Profile {
	if profiles == nil {
		return fallback
	}
	fetched, err := profiles.GetCustomerProfile(ctx, tenant, strings.TrimSpace(token))
	if err != nil {
		if logg != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "customer profile lookup failed")
		}
		return fallback
	}
	return &customer.Profile{
		ID:        fetched.ID,
		Email:     fetched.Email,
		FirstName: fetched.FirstName,
		LastName:  fetched.LastName,
		Phone:     fetched.Phone,
	}
}

// CustomerSessionDelete logs the customer out on this device.
func CustomerSessionDelete(kv storage.KV, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := shopperFrom(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := customerStore(kv, who.deviceID, logg).Drop(r.Context(), who.tenant); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, customerSessionResponse{Authenticated: false})
	}
}
