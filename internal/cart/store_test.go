package cart

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/events"
	"github.com/angelmondragon/storefront-checkout/internal/storage"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingKV struct {
	storage.KV
	sets    int
	deletes int
	failSet bool
}

func (c *countingKV) Set(ctx context.Context, key, value string) error {
	if c.failSet {
		return errors.New("disk full")
	}
	c.sets++
	return c.KV.Set(ctx, key, value)
}

func (c *countingKV) Delete(ctx context.Context, key string) error {
	c.deletes++
	return c.KV.Delete(ctx, key)
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recordingNotifier) CartChanged(_ context.Context, c Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func product(id int64, price string, stock int) Product {
	return Product{ID: id, Name: "product", Price: decimal.RequireFromString(price), Stock: stock}
}

func openEmpty(t *testing.T, opts Options) (*Store, *countingKV) {
	t.Helper()
	kv := &countingKV{KV: storage.NewMemory()}
	s, err := Open(context.Background(), kv, "acme", opts)
	require.NoError(t, err)
	return s, kv
}

func TestAddItemMergesAndClampsToStock(t *testing.T) {
	ctx := context.Background()
	s, _ := openEmpty(t, Options{})

	_, err := s.AddItem(ctx, product(1, "10.00", 4), 2)
	require.NoError(t, err)
	line, err := s.AddItem(ctx, product(1, "10.00", 4), 3)
	require.NoError(t, err)

	require.Len(t, s.Lines(), 1)
	assert.Equal(t, 4, line.Quantity)
	assert.Equal(t, 4, s.ItemCount())
}

func TestAddItemMergeWithinStock(t *testing.T) {
	ctx := context.Background()
	s, _ := openEmpty(t, Options{})

	_, err := s.AddItem(ctx, product(7, "1.50", 10), 2)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, product(7, "1.50", 10), 3)
	require.NoError(t, err)

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestAddItemRefreshesStockSnapshot(t *testing.T) {
	ctx := context.Background()
	s, _ := openEmpty(t, Options{})

	_, err := s.AddItem(ctx, product(1, "5.00", 10), 6)
	require.NoError(t, err)
	line, err := s.AddItem(ctx, product(1, "5.00", 3), 1)
	require.NoError(t, err)

	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, 3, line.StockSnapshot)
}

func TestAddItemHugeQuantityStaysWithinStock(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s, err := Open(ctx, kv, "acme", Options{})
	require.NoError(t, err)

	_, err = s.AddItem(ctx, product(1, "10.00", 5), 1)
	require.NoError(t, err)
	line, err := s.AddItem(ctx, product(1, "10.00", 5), math.MaxInt)
	require.NoError(t, err)

	assert.Equal(t, 5, line.Quantity)
	assert.Equal(t, 5, s.ItemCount())
	assert.True(t, decimal.RequireFromString("50.00").Equal(s.Total()))

	fresh, err := s.AddItem(ctx, product(2, "1.00", 3), math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, 3, fresh.Quantity)

	reloaded, err := Open(ctx, kv, "acme", Options{})
	require.NoError(t, err)
	require.Len(t, reloaded.Lines(), 2)
	assert.Equal(t, 8, reloaded.ItemCount())
}

func TestAddItemRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	s, kv := openEmpty(t, Options{})

	_, err := s.AddItem(ctx, product(1, "5.00", 3), 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = s.AddItem(ctx, product(1, "5.00", 0), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOutOfStock))

	_, err = s.AddItem(ctx, product(0, "5.00", 3), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = s.AddItem(ctx, product(1, "-1", 3), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	assert.Empty(t, s.Lines())
	assert.Zero(t, kv.sets)
}

func TestUpdateQuantityClampsToSnapshot(t *testing.T) {
	ctx := context.Background()
	s, _ := openEmpty(t, Options{})
	_, err := s.AddItem(ctx, product(1, "2.00", 5), 1)
	require.NoError(t, err)

	require.NoError(t, s.UpdateQuantity(ctx, 1, 9))
	assert.Equal(t, 5, s.Lines()[0].Quantity)

	require.NoError(t, s.UpdateQuantity(ctx, 1, 2))
	assert.Equal(t, 2, s.Lines()[0].Quantity)

	require.NoError(t, s.UpdateQuantity(ctx, 1, 0))
	assert.Empty(t, s.Lines())
}

func TestUpdateQuantityAbsentSkipsPersistence(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	s, kv := openEmpty(t, Options{Notifier: notifier})

	require.NoError(t, s.UpdateQuantity(ctx, 42, 3))
	require.NoError(t, s.RemoveItem(ctx, 42))
	require.NoError(t, s.UpdateQuantity(ctx, 42, -1))

	assert.Zero(t, kv.sets)
	assert.Empty(t, notifier.changes)
}

func TestLegacySnapshotClampsToCurrentQuantity(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(ctx, "cart_acme", `[{"product_id":3,"name":"old","unit_price":"4.00","quantity":2,"stock_snapshot":0}]`))

	s, err := Open(ctx, kv, "acme", Options{})
	require.NoError(t, err)
	require.NoError(t, s.UpdateQuantity(ctx, 3, 10))
	assert.Equal(t, 2, s.Lines()[0].Quantity)
}

func TestStockClampHoldsForRandomSequences(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 50; run++ {
		stock := 1 + rng.Intn(8)
		s, _ := openEmpty(t, Options{})
		for step := 0; step < 30; step++ {
			if rng.Intn(2) == 0 {
				_, err := s.AddItem(ctx, product(1, "3.00", stock), 1+rng.Intn(6))
				require.NoError(t, err)
			} else {
				require.NoError(t, s.UpdateQuantity(ctx, 1, rng.Intn(12)-2))
			}
			for _, l := range s.Lines() {
				require.LessOrEqual(t, l.Quantity, stock)
				require.GreaterOrEqual(t, l.Quantity, 1)
			}
		}
	}
}

func TestTotalMatchesLineSum(t *testing.T) {
	ctx := context.Background()
	s, _ := openEmpty(t, Options{})

	_, err := s.AddItem(ctx, product(1, "10.00", 5), 2)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, product(2, "0.10", 50), 3)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, product(3, "19.99", 1), 4)
	require.NoError(t, err)
	require.NoError(t, s.RemoveItem(ctx, 3))
	require.NoError(t, s.UpdateQuantity(ctx, 2, 7))

	expected := decimal.Zero
	for _, l := range s.Lines() {
		expected = expected.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	assert.True(t, s.Total().Equal(expected))
	assert.Equal(t, "20.7", s.Total().String())

	snap := s.Snapshot()
	assert.True(t, snap.Total.Equal(expected))
	assert.Equal(t, 9, snap.ItemCount)
}

func TestMutationsPersistAndReload(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	s, err := Open(ctx, kv, "acme", Options{})
	require.NoError(t, err)

	_, err = s.AddItem(ctx, product(1, "10.00", 5), 2)
	require.NoError(t, err)
	_, err = s.AddItem(ctx, product(2, "3.25", 5), 1)
	require.NoError(t, err)

	reloaded, err := Open(ctx, kv, "acme", Options{})
	require.NoError(t, err)
	want, got := s.Lines(), reloaded.Lines()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ProductID, got[i].ProductID)
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
		assert.Equal(t, want[i].StockSnapshot, got[i].StockSnapshot)
		assert.True(t, want[i].UnitPrice.Equal(got[i].UnitPrice))
	}

	other, err := Open(ctx, kv, "globex", Options{})
	require.NoError(t, err)
	assert.Empty(t, other.Lines())
}

func TestClearDeletesRecordAndBroadcasts(t *testing.T) {
	ctx := context.Background()
	notifier := &recordingNotifier{}
	s, kv := openEmpty(t, Options{Notifier: notifier})

	_, err := s.AddItem(ctx, product(1, "10.00", 5), 2)
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx))

	assert.Empty(t, s.Lines())
	assert.Equal(t, 1, kv.deletes)
	_, err = kv.Get(ctx, StorageKey("acme"))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.Len(t, notifier.changes, 2)
	assert.Equal(t, 2, notifier.changes[0].ItemCount)
	assert.Equal(t, 0, notifier.changes[1].ItemCount)
}

func TestCorruptRecordLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})

	for _, raw := range []string{`{not json`, `"a string"`, `[{"product_id":0,"quantity":1}]`, `[{"product_id":1,"quantity":0,"unit_price":"1"}]`} {
		kv := storage.NewMemory()
		require.NoError(t, kv.Set(ctx, "cart_acme", raw))

		s, err := Open(ctx, kv, "acme", Options{Logger: logg})
		require.NoError(t, err, raw)
		assert.Empty(t, s.Lines(), raw)
	}
	assert.Contains(t, buf.String(), "cart")
}

func TestOpenSurfacesStorageFailure(t *testing.T) {
	_, err := Open(context.Background(), failingKV{}, "acme", Options{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	_, err = Open(context.Background(), storage.NewMemory(), "", Options{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestPersistFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	s, kv := openEmpty(t, Options{})
	_, err := s.AddItem(ctx, product(1, "10.00", 5), 2)
	require.NoError(t, err)

	kv.failSet = true
	_, err = s.AddItem(ctx, product(1, "10.00", 5), 2)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, 2, s.ItemCount())
}

func TestBusNotifierPublishesOnDeviceTopic(t *testing.T) {
	ctx := context.Background()
	hub := events.NewHub()
	ch, cancel, err := hub.Subscribe(ctx, events.CartTopic("dev-1", "acme"))
	require.NoError(t, err)
	defer cancel()

	s, _ := openEmpty(t, Options{Notifier: BusNotifier(hub, "dev-1", nil)})
	_, err = s.AddItem(ctx, product(1, "10.00", 5), 2)
	require.NoError(t, err)

	payload := <-ch
	assert.JSONEq(t, `{"tenant":"acme","item_count":2,"total":"20"}`, string(payload))
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, error) { return "", errors.New("down") }
func (failingKV) Set(context.Context, string, string) error   { return errors.New("down") }
func (failingKV) Delete(context.Context, string) error        { return errors.New("down") }

func TestFactoryScopesCartsPerDevice(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	hub := events.NewHub()
	factory := NewFactory(kv, hub, nil, nil)

	updates, cancel, err := hub.Subscribe(ctx, events.CartTopic("dev-a", "acme"))
	require.NoError(t, err)
	defer cancel()

	a, err := factory.Open(ctx, "dev-a", "acme")
	require.NoError(t, err)
	_, err = a.AddItem(ctx, Product{ID: 7, Name: "Lamp", Price: decimal.NewFromInt(12), Stock: 3}, 1)
	require.NoError(t, err)

	b, err := factory.Open(ctx, "dev-b", "acme")
	require.NoError(t, err)
	assert.True(t, b.Snapshot().IsEmpty())

	reopened, err := factory.Open(ctx, "dev-a", "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.ItemCount())

	select {
	case payload := <-updates:
		assert.Contains(t, string(payload), `"item_count":1`)
	case <-time.After(time.Second):
		t.Fatal("expected a cart change on the device topic")
	}
}
