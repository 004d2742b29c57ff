package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/checkout/submit"
	"github.com/angelmondragon/storefront-checkout/internal/checkout/validation"
	"github.com/angelmondragon/storefront-checkout/internal/customer"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/google/uuid"
)

const defaultSessionTTL = 30 * time.Minute

type sessionGauge interface {
	SetOpenSessions(n int)
}

// Registry owns the live checkout sessions. Sessions live only in memory and
// are never restored after a restart.
type Registry struct {
	submitter orderSubmitter
	ttl       time.Duration
	now       func() time.Time
	logg      *logger.Logger
	gauge     sessionGauge

	mu       sync.Mutex
	sessions map[string]*Session
}

type RegistryOption func(*Registry)

func WithSessionTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

func WithRegistryLogger(logg *logger.Logger) RegistryOption {
	return func(r *Registry) { r.logg = logg }
}

func WithSessionGauge(g sessionGauge) RegistryOption {
	return func(r *Registry) { r.gauge = g }
}

func NewRegistry(submitter orderSubmitter, opts ...RegistryOption) *Registry {
	r := &Registry{
		submitter: submitter,
		ttl:       defaultSessionTTL,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// OpenParams describes who is checking out.
type OpenParams struct {
	Tenant   string
	DeviceID string
	Customer customer.Session
	OpenCart CartOpener
}

// Open starts a session on the shipping step, pre-filled from the customer
// profile when one is signed in.
func (r *Registry) Open(p OpenParams) (*Session, error) {
	if p.Tenant == "" || p.DeviceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant and device are required")
	}
	if p.OpenCart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart opener required")
	}

	s := &Session{
		id:        uuid.NewString(),
		tenant:    p.Tenant,
		deviceID:  p.DeviceID,
		customer:  p.Customer,
		openCart:  p.OpenCart,
		submitter: r.submitter,
		logg:      r.logg,
		now:       r.now,
		step:      StepShipping,
		shipping:  validation.ShippingAddress{Country: submit.DefaultCountry},
	}
	if p.Customer.IsAuthenticated() && p.Customer.Profile != nil {
		prof := p.Customer.Profile
		s.shipping.FirstName = prof.FirstName
		s.shipping.LastName = prof.LastName
		s.shipping.Email = prof.Email
		s.shipping.Phone = prof.Phone
		s.cardholderName = prof.FullName()
	}
	s.lastActive = r.now()

	r.mu.Lock()
	r.sessions[s.id] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.reportSize(n)
	return s, nil
}

// Get returns the session only to the device and tenant that opened it.
func (r *Registry) Get(id, deviceID, tenant string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok || s.deviceID != deviceID || s.tenant != tenant {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	}
	return s, nil
}

// Close discards a session. The cart is not touched.
func (r *Registry) Close(id, deviceID, tenant string) error {
	s, err := r.Get(id, deviceID, tenant)
	if err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	s.close()
	r.reportSize(n)
	return nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the TTL and returns how many
// were removed. Sessions with a submission in flight are kept.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.idle(now, r.ttl) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	if len(expired) > 0 {
		r.reportSize(n)
	}
	return len(expired)
}

// Run sweeps on every tick until ctx ends.
func (r *Registry) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := r.Sweep(r.now()); removed > 0 && r.logg != nil {
				r.logg.Debug(r.logg.WithField(ctx, "removed", removed), "swept idle checkout sessions")
			}
		}
	}
}

func (r *Registry) reportSize(n int) {
	if r.gauge != nil {
		r.gauge.SetOpenSessions(n)
	}
}
