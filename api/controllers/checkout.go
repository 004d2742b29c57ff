package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/checkout/validation"
	"github.com/angelmondragon/storefront-checkout/internal/storage"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// CheckoutOpen starts a checkout for the device, pre-filled from the stored
// customer profile.
func CheckoutOpen(registry CheckoutRegistry, carts CartOpener, kv storage.KV, logg *logger.Logger) http.HandlerFunc {
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

		s, err := registry.Open(checkout.OpenParams{
			Tenant:   who.tenant,
			DeviceID: who.deviceID,
			Customer: sess,
			OpenCart: func(ctx context.Context) (checkout.CartStore, error) {
				store, err := carts.Open(ctx, who.deviceID, who.tenant)
				if err != nil {
					return nil, err
				}
				return store, nil
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithSessionID(r.Context(), s.ID()), "checkout opened")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, s.View())
	}
}

func CheckoutGet(registry CheckoutRegistry, logg *logger.Logger) http.HandlerFunc {
	return withSession(registry, logg, func(w http.ResponseWriter, r *http.Request, s *checkout.Session) {
		responses.WriteSuccess(w, s.View())
	})
}

// CheckoutShipping submits the shipping form. Missing fields answer 400 with
// per-field messages and keep the session on the shipping step.
func CheckoutShipping(registry CheckoutRegistry, logg *logger.Logger) http.HandlerFunc {
	return withSession(registry, logg, func(w http.ResponseWriter, r *http.Request, s *checkout.Session) {
		var addr validation.ShippingAddress
		if err := validators.DecodeJSON(r, &addr); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, fieldErrs, err := s.SubmitShipping(addr)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !fieldErrs.Valid() {
			responses.WriteError(r.Context(), logg, w, formErrors("shipping address incomplete", fieldErrs))
			return
		}
		responses.WriteSuccess(w, view)
	})
}

// CheckoutPayment places the order. Order failures come back inside the
// session view as last_error with status 200.
func CheckoutPayment(registry CheckoutRegistry, logg *logger.Logger) http.HandlerFunc {
	return withSession(registry, logg, func(w http.ResponseWriter, r *http.Request, s *checkout.Session) {
		var payment validation.PaymentDetails
		if err := validators.DecodeJSON(r, &payment); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, fieldErrs, err := s.SubmitPayment(r.Context(), payment)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !fieldErrs.Valid() {
			responses.WriteError(r.Context(), logg, w, formErrors("payment details incomplete", fieldErrs))
			return
		}
		logOutcome(r.Context(), logg, view)
		responses.WriteSuccess(w, view)
	})
}

func CheckoutBack(registry CheckoutRegistry, logg *logger.Logger) http.HandlerFunc {
	return withSession(registry, logg, func(w http.ResponseWriter, r *http.Request, s *checkout.Session) {
		view, err := s.Back()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	})
}

func CheckoutRetry(registry CheckoutRegistry, logg *logger.Logger) http.HandlerFunc {
	return withSession(registry, logg, func(w http.ResponseWriter, r *http.Request, s *checkout.Session) {
		view, err := s.Retry(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logOutcome(r.Context(), logg, view)
		responses.WriteSuccess(w, view)
	})
}

// CheckoutClose discards the session and leaves the cart as it is.
func CheckoutClose(registry CheckoutRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := shopperFrom(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := registry.Close(chi.URLParam(r, "sessionId"), who.deviceID, who.tenant); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func withSession(registry CheckoutRegistry, logg *logger.Logger, next func(http.ResponseWriter, *http.Request, *checkout.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who, err := shopperFrom(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id := chi.URLParam(r, "sessionId")
		s, err := registry.Get(id, who.deviceID, who.tenant)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			r = r.WithContext(logg.WithSessionID(r.Context(), id))
		}
		next(w, r, s)
	}
}

func formErrors(msg string, fieldErrs validation.FieldErrors) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"fields": fieldErrs})
}

func logOutcome(ctx context.Context, logg *logger.Logger, view checkout.View) {
	if logg == nil {
		return
	}
	switch {
	case view.Order != nil:
		ctx = logg.WithFields(ctx, map[string]any{
			"order_number": view.Order.Order.OrderNumber,
			"order_path":   string(view.OrderPath),
		})
		logg.Info(ctx, "checkout order placed")
	case view.LastError != nil:
		ctx = logg.WithFields(ctx, map[string]any{
			"failure_kind": string(view.LastError.Kind),
			"retryable":    view.LastError.Retryable,
		})
		logg.Warn(ctx, "checkout order failed")
	}
}
