// Package submit turns a cart plus checkout forms into a backend order,
// choosing between the authenticated and guest endpoints.
package submit

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/checkout/failure"
	"github.com/angelmondragon/storefront-checkout/internal/checkout/validation"
	"github.com/angelmondragon/storefront-checkout/internal/customer"
	"github.com/angelmondragon/storefront-checkout/internal/storefront"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/google/uuid"
)

// DefaultCountry fills an empty shipping country.
const DefaultCountry = "United States"

type Path string

const (
	PathNone          Path = ""
	PathAuthenticated Path = "authenticated"
	PathGuest         Path = "guest"
	// PathGuestFallback is the guest endpoint reached after an auth failure.
	PathGuestFallback Path = "guest_fallback"
)

var errTokenExpired = errors.New("customer token expired")

var whitespace = regexp.MustCompile(`\s+`)

// Backend is the order-creation surface of the storefront client.
type Backend interface {
	CreateOrder(ctx context.Context, tenant, token string, req storefront.OrderRequest) (*storefront.OrderResult, error)
	CreateGuestOrder(ctx context.Context, tenant string, req storefront.OrderRequest, info storefront.CustomerInfo) (*storefront.OrderResult, error)
}

type recorder interface {
	ObserveSubmission(path, outcome string, elapsed time.Duration)
	IncFallback()
}

// Input is everything one submission needs. It is captured once per payment
// action and replayed verbatim on retry.
type Input struct {
	Tenant   string
	Cart     cart.Snapshot
	Shipping validation.ShippingAddress
	Payment  validation.PaymentDetails
	Session  customer.Session
}

// Result holds either an order or a classified failure.
type Result struct {
	Order    *storefront.OrderResult
	Failure  *failure.Error
	Path     Path
	FellBack bool
}

func (r Result) OK() bool {
	return r.Order != nil && r.Failure == nil
}

// Submitter places orders. It never touches cart state.
type Submitter struct {
	backend    Backend
	credential func() string
	now        func() time.Time
	logg       *logger.Logger
	metrics    recorder
}

type Option func(*Submitter)

// WithPlaceholderCredential sets the generator for the one-time password sent
// with guest customer info. A nil generator omits the field.
func WithPlaceholderCredential(fn func() string) Option {
	return func(s *Submitter) { s.credential = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Submitter) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(s *Submitter) { s.logg = logg }
}

func WithMetrics(m recorder) Option {
	return func(s *Submitter) { s.metrics = m }
}

func New(backend Backend, opts ...Option) *Submitter {
	s := &Submitter{
		backend:    backend,
		credential: uuid.NewString,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Submit places the order described by in.
//
// Authenticated shoppers go through the bearer endpoint first. Only an auth
// failure there (including a token already expired locally) triggers a single
// retry on the guest endpoint; every other failure is returned as is.
func (s *Submitter) Submit(ctx context.Context, in Input) Result {
	start := s.now()

	req, failed := buildRequest(in)
	if failed != nil {
		s.observe(PathNone, failed, start)
		return Result{Failure: failed}
	}

	if !in.Session.IsAuthenticated() {
		info := customerInfo(nil, in.Shipping, s.placeholder())
		order, err := s.backend.CreateGuestOrder(ctx, in.Tenant, req, info)
		return s.finish(PathGuest, false, order, err, start)
	}

	var (
		order *storefront.OrderResult
		err   error
	)
	if in.Session.TokenExpired(s.now()) {
		err = failure.Auth(errTokenExpired)
	} else {
		order, err = s.backend.CreateOrder(ctx, in.Tenant, in.Session.Token, req)
	}
	if err == nil {
		return s.finish(PathAuthenticated, false, order, nil, start)
	}

	classified := failure.Classify(err)
	if classified.Kind != failure.KindAuth {
		return s.finish(PathAuthenticated, false, nil, classified, start)
	}

	if s.metrics != nil {
		s.metrics.IncFallback()
	}
	if s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", classified.Error()), "authenticated order rejected, falling back to guest order")
	}

	info := customerInfo(in.Session.Profile, in.Shipping, s.placeholder())
	order, err = s.backend.CreateGuestOrder(ctx, in.Tenant, req, info)
	return s.finish(PathGuestFallback, true, order, err, start)
}

func (s *Submitter) finish(path Path, fellBack bool, order *storefront.OrderResult, err error, start time.Time) Result {
	res := Result{Path: path, FellBack: fellBack}
	if err != nil {
		res.Failure = failure.Classify(err)
	} else if order == nil {
		res.Failure = failure.Classify(errors.New("empty order response"))
	} else {
		res.Order = order
	}
	s.observe(path, res.Failure, start)
	return res
}

func (s *Submitter) observe(path Path, f *failure.Error, start time.Time) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if f != nil {
		outcome = string(f.Kind)
	}
	label := string(path)
	if label == "" {
		label = "rejected"
	}
	s.metrics.ObserveSubmission(label, outcome, s.now().Sub(start))
}

func (s *Submitter) placeholder() string {
	if s.credential == nil {
		return ""
	}
	return s.credential()
}

var shippingOrder = []string{"first_name", "last_name", "email", "address_line1", "city", "state", "postal_code", "country"}
var paymentOrder = []string{"card_number", "expiry_month", "expiry_year", "cvv", "cardholder_name"}

// buildRequest re-checks the captured forms and assembles the wire payload.
func buildRequest(in Input) (storefront.OrderRequest, *failure.Error) {
	if in.Cart.IsEmpty() {
		return storefront.OrderRequest{}, failure.Validation("Cart is empty")
	}
	if errs := validation.ValidateShipping(in.Shipping); !errs.Valid() {
		return storefront.OrderRequest{}, failure.Validation("Missing required field: " + firstMissing(errs, shippingOrder))
	}
	if errs := validation.ValidatePayment(in.Payment); !errs.Valid() {
		return storefront.OrderRequest{}, failure.Validation("Missing required payment field: " + firstMissing(errs, paymentOrder))
	}

	month, err := strconv.Atoi(strings.TrimSpace(in.Payment.ExpiryMonth))
	if err != nil {
		return storefront.OrderRequest{}, failure.Validation("Expiry month must be a number")
	}
	year, err := strconv.Atoi(strings.TrimSpace(in.Payment.ExpiryYear))
	if err != nil {
		return storefront.OrderRequest{}, failure.Validation("Expiry year must be a number")
	}

	items := make([]storefront.OrderItem, 0, len(in.Cart.Lines))
	for _, l := range in.Cart.Lines {
		items = append(items, storefront.OrderItem{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	country := in.Shipping.Country
	if country == "" {
		country = DefaultCountry
	}

	return storefront.OrderRequest{
		Items: items,
		ShippingAddress: storefront.ShippingAddress{
			AddressLine1: in.Shipping.AddressLine1,
			AddressLine2: in.Shipping.AddressLine2,
			City:         in.Shipping.City,
			State:        in.Shipping.State,
			PostalCode:   in.Shipping.PostalCode,
			Country:      country,
		},
		Payment: storefront.Payment{
			CardNumber:     whitespace.ReplaceAllString(in.Payment.CardNumber, ""),
			ExpiryMonth:    month,
			ExpiryYear:     year,
			CVV:            in.Payment.CVV,
			CardholderName: in.Payment.CardholderName,
			Amount:         in.Cart.Total.Round(2).InexactFloat64(),
		},
	}, nil
}

func firstMissing(errs validation.FieldErrors, order []string) string {
	for _, field := range order {
		if _, ok := errs[field]; ok {
			return strings.ReplaceAll(field, "_", " ")
		}
	}
	return "form"
}

// customerInfo prefers profile fields and falls back to the shipping form.
func customerInfo(profile *customer.Profile, shipping validation.ShippingAddress, credential string) storefront.CustomerInfo {
	info := storefront.CustomerInfo{
		Email:     shipping.Email,
		FirstName: shipping.FirstName,
		LastName:  shipping.LastName,
		Phone:     shipping.Phone,
		Password:  credential,
	}
	if profile == nil {
		return info
	}
	info.Email = firstNonEmpty(profile.Email, shipping.Email)
	info.FirstName = firstNonEmpty(profile.FirstName, shipping.FirstName)
	info.LastName = firstNonEmpty(profile.LastName, shipping.LastName)
	info.Phone = firstNonEmpty(profile.Phone, shipping.Phone)
	return info
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
