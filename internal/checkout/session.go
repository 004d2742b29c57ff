// Package checkout drives the three-step checkout flow
// (shipping, payment, confirmation) for one shopper.
package checkout

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/checkout/failure"
	"github.com/angelmondragon/storefront-checkout/internal/checkout/submit"
	"github.com/angelmondragon/storefront-checkout/internal/checkout/validation"
	"github.com/angelmondragon/storefront-checkout/internal/customer"
	"github.com/angelmondragon/storefront-checkout/internal/storefront"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type Step string

const (
	StepShipping     Step = "shipping"
	StepPayment      Step = "payment"
	StepConfirmation Step = "confirmation"
)

// CartStore is the slice of the cart a checkout session reads and clears.
type CartStore interface {
	Snapshot() cart.Snapshot
	Clear(ctx context.Context) error
}

// CartOpener loads the shopper's current cart.
type CartOpener func(ctx context.Context) (CartStore, error)

type orderSubmitter interface {
	Submit(ctx context.Context, in submit.Input) submit.Result
}

// LastError is the banner shown at the payment step after a failed submit.
type LastError struct {
	Kind      failure.Kind `json:"kind"`
	Message   string       `json:"message"`
	Retryable bool         `json:"retryable"`
}

// View is a point-in-time copy of a session.
type View struct {
	ID             string                     `json:"id"`
	Tenant         string                     `json:"tenant"`
	Step           Step                       `json:"step"`
	Shipping       validation.ShippingAddress `json:"shipping"`
	CardholderName string                     `json:"cardholder_name,omitempty"`
	Authenticated  bool                       `json:"authenticated"`
	Submitting     bool                       `json:"submitting"`
	LastError      *LastError                 `json:"last_error,omitempty"`
	Order          *storefront.OrderResult    `json:"order,omitempty"`
	OrderPath      submit.Path                `json:"order_path,omitempty"`
}

// Session is one open checkout. The zero value is not usable; sessions are
// created by Registry.Open.
//
// At most one order submission runs at a time: a payment submit or retry that
// arrives while another is in flight returns the current view without
// submitting again.
type Session struct {
	id        string
	tenant    string
	deviceID  string
	customer  customer.Session
	openCart  CartOpener
	submitter orderSubmitter
	logg      *logger.Logger
	now       func() time.Time

	submitting atomic.Bool

	mu             sync.Mutex
	step           Step
	shipping       validation.ShippingAddress
	cardholderName string
	captured       *submit.Input
	lastErr        *failure.Error
	order          *storefront.OrderResult
	orderPath      submit.Path
	closed         bool
	lastActive     time.Time
}

func (s *Session) ID() string {
	return s.id
}

// View returns a copy of the session state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// SubmitShipping stores addr and advances to the payment step when every
// required field is present. Field errors keep the session on shipping.
func (s *Session) SubmitShipping(addr validation.ShippingAddress) (View, validation.FieldErrors, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStepLocked(StepShipping); err != nil {
		return s.viewLocked(), nil, err
	}
	s.touchLocked()
	s.shipping = addr

	if errs := validation.ValidateShipping(addr); !errs.Valid() {
		return s.viewLocked(), errs, nil
	}
	s.step = StepPayment
	return s.viewLocked(), nil, nil
}

// Back returns from payment to shipping, keeping the shipping form.
func (s *Session) Back() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireStepLocked(StepPayment); err != nil {
		return s.viewLocked(), err
	}
	if s.submitting.Load() {
		return s.viewLocked(), pkgerrors.New(pkgerrors.CodeStateConflict, "order submission in progress")
	}
	s.touchLocked()
	s.step = StepShipping
	s.captured = nil
	s.lastErr = nil
	return s.viewLocked(), nil
}

// SubmitPayment validates payment and places the order. Field errors block
// the submission locally; backend failures keep the session on payment with
// LastError set.
func (s *Session) SubmitPayment(ctx context.Context, payment validation.PaymentDetails) (View, validation.FieldErrors, error) {
	s.mu.Lock()
	if err := s.requireStepLocked(StepPayment); err != nil {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, nil, err
	}
	s.touchLocked()
	if errs := validation.ValidatePayment(payment); !errs.Valid() {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, errs, nil
	}
	if !s.submitting.CompareAndSwap(false, true) {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, nil, nil
	}
	s.mu.Unlock()

	store, err := s.openCart(ctx)
	if err != nil {
		s.submitting.Store(false)
		return s.View(), nil, err
	}
	in := submit.Input{
		Tenant:   s.tenant,
		Cart:     store.Snapshot(),
		Shipping: s.shippingCopy(),
		Payment:  payment,
		Session:  s.customer,
	}
	return s.run(ctx, store, in), nil, nil
}

// Retry resubmits the captured input after a retryable failure.
func (s *Session) Retry(ctx context.Context) (View, error) {
	s.mu.Lock()
	if err := s.requireStepLocked(StepPayment); err != nil {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, err
	}
	if s.submitting.Load() {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, nil
	}
	if s.captured == nil || s.lastErr == nil || !s.lastErr.Retryable {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, pkgerrors.New(pkgerrors.CodeStateConflict, "nothing to retry")
	}
	if !s.submitting.CompareAndSwap(false, true) {
		v := s.viewLocked()
		s.mu.Unlock()
		return v, nil
	}
	s.touchLocked()
	in := *s.captured
	s.mu.Unlock()

	store, err := s.openCart(ctx)
	if err != nil {
		s.submitting.Store(false)
		return s.View(), err
	}
	return s.run(ctx, store, in), nil
}

// run submits in on a context that outlives the caller's request, then
// applies the result. The submitting flag must already be held.
func (s *Session) run(ctx context.Context, store CartStore, in submit.Input) View {
	defer s.submitting.Store(false)

	s.mu.Lock()
	s.captured = &in
	s.lastErr = nil
	s.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	res := s.submitter.Submit(detached, in)

	if res.OK() {
		if err := store.Clear(detached); err != nil && s.logg != nil {
			s.logg.Error(detached, "order placed but cart clear failed", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()

	if s.closed {
		return s.viewLocked()
	}
	if res.OK() {
		s.step = StepConfirmation
		s.order = res.Order
		s.orderPath = res.Path
		s.captured = nil
		s.cardholderName = ""
		return s.viewLocked()
	}
	s.lastErr = res.Failure
	if !res.Failure.Retryable {
		s.captured = nil
	}
	return s.viewLocked()
}

// close marks the session discarded. An in-flight submission still completes.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if !s.submitting.Load() {
		s.captured = nil
	}
}

func (s *Session) idle(now time.Time, ttl time.Duration) bool {
	if s.submitting.Load() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActive) > ttl
}

func (s *Session) shippingCopy() validation.ShippingAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shipping
}

func (s *Session) requireStepLocked(want Step) error {
	if s.closed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "checkout session closed")
	}
	if s.step != want {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is not at the "+string(want)+" step").
			WithDetails(map[string]any{"step": s.step})
	}
	return nil
}

func (s *Session) touchLocked() {
	s.lastActive = s.now()
}

func (s *Session) viewLocked() View {
	v := View{
		ID:             s.id,
		Tenant:         s.tenant,
		Step:           s.step,
		Shipping:       s.shipping,
		CardholderName: s.cardholderName,
		Authenticated:  s.customer.IsAuthenticated(),
		Submitting:     s.submitting.Load(),
		Order:          s.order,
		OrderPath:      s.orderPath,
	}
	if s.lastErr != nil {
		v.LastError = &LastError{
			Kind:      s.lastErr.Kind,
			Message:   s.lastErr.Message,
			Retryable: s.lastErr.Retryable,
		}
	}
	return v
}
