package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/storefront"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const maxSuggestionQuery = 100

// StoreInfo returns tenant branding. Lookup failures are logged and answered
// with null data so the page renders with defaults.
func StoreInfo(lookup StoreLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := shopperFrom(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		info, err := lookup.GetTenantInfo(r.Context(), who.tenant)
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "tenant info lookup failed")
			}
			responses.WriteSuccess(w, nil)
			return
		}
		responses.WriteSuccess(w, info)
	}
}

// SearchSuggestions proxies autocomplete. Failures yield an empty list.
func SearchSuggestions(lookup StoreLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := shopperFrom(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		q := validators.QueryString(r, "q", maxSuggestionQuery)
		suggestions, err := lookup.SearchSuggestions(r.Context(), who.tenant, q)
		if err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "search suggestions lookup failed")
			}
			suggestions = nil
		}
		if suggestions == nil {
			suggestions = []storefront.Suggestion{}
		}
		responses.WriteSuccess(w, suggestions)
	}
}
