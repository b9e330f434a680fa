package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go-ecommerce-delivery/cache"
	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/storage"
	"go-ecommerce-delivery/store"
	"go-ecommerce-delivery/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	svc   *Services
	store *store.Store
	idem  *cache.InMemoryIdempotencyStore
	now   time.Time
	seq   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	blobs, err := storage.NewLocalStorage(t.TempDir(), "http://localhost:8000/uploads")
	require.NoError(t, err)
	idem := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { idem.Close() })

	f := &fixture{
		store: store.NewMemory(),
		idem:  idem,
		now:   time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.svc = New(Deps{
		Store:       f.store,
		Blobs:       blobs,
		Idempotency: idem,
		Tokens:      utils.NewTokenManager("test-secret", time.Hour),
		Location:    time.UTC,
		Now:         func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) user(t *testing.T, role models.Role) *models.User {
	t.Helper()
	f.seq++
	u := &models.User{
		Username:  fmt.Sprintf("user%d", f.seq),
		Email:     fmt.Sprintf("user%d@example.com", f.seq),
		Phone:     fmt.Sprintf("90000%05d", f.seq),
		Role:      role,
		CreatedAt: f.now,
	}
	require.NoError(t, f.store.Users.Create(context.Background(), u))
	return u
}

func (f *fixture) category(t *testing.T, name string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name, IsActive: true, CreatedAt: f.now}
	require.NoError(t, f.store.Categories.Create(context.Background(), c))
	return c
}

func (f *fixture) product(t *testing.T, cat *models.Category, name string, price float64) *models.Product {
	t.Helper()
	f.seq++
	p := &models.Product{
		Name:       name,
		Price:      price,
		Images:     []string{"http://img/" + name + ".jpg"},
		CategoryID: cat.ID,
		IsActive:   true,
		CreatedAt:  f.now.Add(time.Duration(f.seq) * time.Second),
	}
	require.NoError(t, f.store.Products.Create(context.Background(), p))
	return p
}

func (f *fixture) order(t *testing.T, owner *models.User, status models.OrderStatus) *models.Order {
	t.Helper()
	o := &models.Order{
		UserID:          owner.ID,
		OrderItems:      []models.OrderItem{{ProductID: primitive.NewObjectID(), Name: "Tea", Price: 100, Quantity: 1}},
		ShippingAddress: models.ShippingAddress{Address: "1 Main St", City: "Pune", PostalCode: "411001"},
		PaymentMethod:   "cod",
		TotalPrice:      100,
		Status:          status,
		CreatedAt:       f.now,
		UpdatedAt:       f.now,
	}
	require.NoError(t, f.store.Orders.Create(context.Background(), o))
	return o
}

func requireKind(t *testing.T, err error, kind utils.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, kind), "expected %s, got %v", kind, err)
}

func TestMutateRetriesOnConflict(t *testing.T) {
	t.Run("succeeds after transient conflicts", func(t *testing.T) {
		attempts := 0
		doc, err := mutate(
			func() (*int, error) { v := 1; return &v, nil },
			func(v *int) error { *v++; return nil },
			func(*int) error {
				attempts++
				if attempts < maxSaveAttempts {
					return store.ErrConflict
				}
				return nil
			},
		)
		require.NoError(t, err)
		assert.Equal(t, 2, *doc)
		assert.Equal(t, maxSaveAttempts, attempts)
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		attempts := 0
		_, err := mutate(
			func() (*int, error) { v := 1; return &v, nil },
			func(*int) error { return nil },
			func(*int) error { attempts++; return store.ErrConflict },
		)
		assert.ErrorIs(t, err, store.ErrConflict)
		assert.Equal(t, maxSaveAttempts, attempts)
	})

	t.Run("skip leaves the document unsaved", func(t *testing.T) {
		saved := false
		doc, err := mutate(
			func() (*int, error) { v := 7; return &v, nil },
			func(*int) error { return errSkipSave },
			func(*int) error { saved = true; return nil },
		)
		require.NoError(t, err)
		assert.Equal(t, 7, *doc)
		assert.False(t, saved)
	})

	t.Run("other errors stop immediately", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := mutate(
			func() (*int, error) { v := 1; return &v, nil },
			func(*int) error { return nil },
			func(*int) error { return boom },
		)
		assert.ErrorIs(t, err, boom)
	})
}

func TestStoreErr(t *testing.T) {
	requireKind(t, storeErr(store.ErrNotFound, "Order not found"), utils.KindNotFound)
	requireKind(t, storeErr(store.ErrConflict, ""), utils.KindConflict)
	requireKind(t, storeErr(store.ErrDuplicate, ""), utils.KindConflict)
	requireKind(t, storeErr(errors.New("socket closed"), ""), utils.KindInternal)
	requireKind(t, storeErr(utils.NewForbidden("no"), ""), utils.KindForbidden)
	assert.NoError(t, storeErr(nil, ""))
}

func TestParseID(t *testing.T) {
	id := primitive.NewObjectID()
	got, err := ParseID(id.Hex(), "order")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseID("nope", "order")
	requireKind(t, err, utils.KindValidation)
	assert.EqualError(t, err, "Invalid order ID")
}
