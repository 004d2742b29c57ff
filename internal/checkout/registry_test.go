package checkout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/checkout/submit"
	"github.com/angelmondragon/storefront-checkout/internal/customer"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type gaugeRecorder struct {
	mu   sync.Mutex
	last int
	sets int
}

func (g *gaugeRecorder) SetOpenSessions(n int) {
	g.mu.Lock()
	g.last = n
	g.sets++
	g.mu.Unlock()
}

func (g *gaugeRecorder) value() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

func noCart(context.Context) (CartStore, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "no cart")
}

func newTestRegistry(clock *fakeClock, gauge *gaugeRecorder) *Registry {
	return NewRegistry(
		submit.New(&backendStub{}),
		WithSessionTTL(10*time.Minute),
		WithRegistryClock(clock.Now),
		WithSessionGauge(gauge),
	)
}

func TestRegistryOpenRequiresTenantDeviceAndCart(t *testing.T) {
	r := NewRegistry(submit.New(&backendStub{}))

	_, err := r.Open(OpenParams{DeviceID: "dev-1", OpenCart: noCart})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = r.Open(OpenParams{Tenant: "acme", OpenCart: noCart})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = r.Open(OpenParams{Tenant: "acme", DeviceID: "dev-1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))

	assert.Zero(t, r.Len())
}

func TestRegistryGetIsScopedToDeviceAndTenant(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	r := newTestRegistry(clock, &gaugeRecorder{})

	s, err := r.Open(OpenParams{Tenant: "acme", DeviceID: "dev-1", OpenCart: noCart})
	require.NoError(t, err)

	got, err := r.Get(s.ID(), "dev-1", "acme")
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = r.Get(s.ID(), "dev-2", "acme")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = r.Get(s.ID(), "dev-1", "globex")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = r.Get("missing", "dev-1", "acme")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	err = r.Close(s.ID(), "dev-2", "acme")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, 1, r.Len())
}

func TestRegistrySweepDropsIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	gauge := &gaugeRecorder{}
	r := newTestRegistry(clock, gauge)

	stale, err := r.Open(OpenParams{Tenant: "acme", DeviceID: "dev-1", OpenCart: noCart})
	require.NoError(t, err)
	clock.Advance(6 * time.Minute)
	fresh, err := r.Open(OpenParams{Tenant: "acme", DeviceID: "dev-2", OpenCart: noCart})
	require.NoError(t, err)
	assert.Equal(t, 2, gauge.value())

	clock.Advance(5 * time.Minute)
	removed := r.Sweep(clock.Now())

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 1, gauge.value())
	_, err = r.Get(stale.ID(), "dev-1", "acme")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = r.Get(fresh.ID(), "dev-2", "acme")
	assert.NoError(t, err)

	_, _, err = stale.SubmitShipping(validShipping())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "swept sessions reject further steps")
}

func TestRegistryActivityExtendsSession(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	r := newTestRegistry(clock, &gaugeRecorder{})

	s, err := r.Open(OpenParams{Tenant: "acme", DeviceID: "dev-1", Customer: customer.Session{}, OpenCart: noCart})
	require.NoError(t, err)

	clock.Advance(8 * time.Minute)
	_, _, err = s.SubmitShipping(validShipping())
	require.NoError(t, err)

	clock.Advance(8 * time.Minute)
	assert.Zero(t, r.Sweep(clock.Now()))
	assert.Equal(t, 1, r.Len())
}

func TestRegistrySweepKeepsSubmittingSessions(t *testing.T) {
	backend := &backendStub{entered: make(chan struct{}, 1), release: make(chan struct{})}
	f := newFixture(t, backend)
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	f.registry = NewRegistry(submit.New(backend), WithSessionTTL(time.Minute), WithRegistryClock(clock.Now))
	f.seedCart(t)

	s := f.open(t, authedCustomer())
	toPayment(t, s)

	done := make(chan View, 1)
	go func() {
		v, _, _ := s.SubmitPayment(context.Background(), validPayment())
		done <- v
	}()
	<-backend.entered

	clock.Advance(time.Hour)
	assert.Zero(t, f.registry.Sweep(clock.Now()))

	close(backend.release)
	view := <-done
	assert.Equal(t, StepConfirmation, view.Step)
}

func TestRegistryCloseUpdatesGauge(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	gauge := &gaugeRecorder{}
	r := newTestRegistry(clock, gauge)

	s, err := r.Open(OpenParams{Tenant: "acme", DeviceID: "dev-1", OpenCart: noCart})
	require.NoError(t, err)
	require.Equal(t, 1, gauge.value())

	require.NoError(t, r.Close(s.ID(), "dev-1", "acme"))
	assert.Zero(t, gauge.value())
	assert.Zero(t, r.Len())
}

func TestRegistryRunStopsOnCancel(t *testing.T) {
	r := NewRegistry(submit.New(&backendStub{}))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx, 5*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
