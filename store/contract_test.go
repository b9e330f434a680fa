package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go-ecommerce-delivery/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// runContract exercises the behaviour every Store implementation must share.
func runContract(t *testing.T, newStore func(t *testing.T) *Store) {
	ctx := context.Background()

	t.Run("users unique fields and optimistic save", func(t *testing.T) {
		s := newStore(t)
		u := &models.User{Username: "asha", Email: "asha@example.com", Phone: "9000000001", Role: models.RoleUser}
		require.NoError(t, s.Users.Create(ctx, u))
		require.False(t, u.ID.IsZero())

		dup := &models.User{Username: "other", Email: "asha@example.com", Phone: "9000000002", Role: models.RoleUser}
		assert.ErrorIs(t, s.Users.Create(ctx, dup), ErrDuplicate)

		byPhone, err := s.Users.FindByLogin(ctx, "9000000001")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byPhone.ID)

		first, err := s.Users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		second, err := s.Users.FindByID(ctx, u.ID)
		require.NoError(t, err)

		first.PhoneVerified = true
		require.NoError(t, s.Users.Save(ctx, first))
		assert.Equal(t, int64(1), first.Version)

		second.Role = models.RoleAdmin
		assert.ErrorIs(t, s.Users.Save(ctx, second), ErrConflict)

		stored, err := s.Users.FindByID(ctx, u.ID)
		require.NoError(t, err)
		assert.True(t, stored.PhoneVerified)
		assert.Equal(t, models.RoleUser, stored.Role)

		_, err = s.Users.FindByID(ctx, primitive.NewObjectID())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("users by role", func(t *testing.T) {
		s := newStore(t)
		for i, role := range []models.Role{models.RoleUser, models.RoleUser, models.RoleDelivery} {
			require.NoError(t, s.Users.Create(ctx, &models.User{
				Username: fmt.Sprintf("u%d", i), Email: fmt.Sprintf("u%d@example.com", i),
				Phone: fmt.Sprintf("90000000%02d", i), Role: role, CreatedAt: time.Now(),
			}))
		}
		n, err := s.Users.CountByRole(ctx, models.RoleUser)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		partners, err := s.Users.ListByRole(ctx, models.RoleDelivery)
		require.NoError(t, err)
		assert.Len(t, partners, 1)

		var seen int
		require.NoError(t, s.Users.EachByRole(ctx, models.RoleUser, func(*models.User) error {
			seen++
			return nil
		}))
		assert.Equal(t, 2, seen)
	})

	t.Run("product listing", func(t *testing.T) {
		s := newStore(t)
		cat := primitive.NewObjectID()
		base := time.Now().Truncate(time.Millisecond)
		names := []string{"Green Tea", "Black Tea", "Coffee", "Tea Cup"}
		for i, name := range names {
			require.NoError(t, s.Products.Create(ctx, &models.Product{
				Name: name, Price: float64(10 * (i + 1)), CategoryID: cat,
				IsActive: name != "Tea Cup", CreatedAt: base.Add(time.Duration(i) * time.Minute),
			}))
		}

		items, total, err := s.Products.List(ctx, ProductQuery{Keyword: "TEA", ActiveOnly: true, Sort: SortPriceHigh})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, items, 2)
		assert.Equal(t, "Black Tea", items[0].Name)

		items, total, err = s.Products.List(ctx, ProductQuery{ActiveOnly: true, Skip: 2, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, items, 1)
		assert.Equal(t, "Green Tea", items[0].Name)

		items, _, err = s.Products.List(ctx, ProductQuery{Keyword: "(", ActiveOnly: true})
		require.NoError(t, err)
		assert.Empty(t, items)

		similar, err := s.Products.Similar(ctx, cat, items0ID(t, s, "Coffee"), 3)
		require.NoError(t, err)
		assert.Len(t, similar, 2)
	})

	t.Run("product price sort uses the effective price", func(t *testing.T) {
		s := newStore(t)
		base := time.Now().Truncate(time.Millisecond)
		products := []*models.Product{
			{Name: "flat", Price: 100},
			{Name: "offer", OriginalPrice: 600, OfferPrice: 500},
			{Name: "variant", Variants: []models.Variant{{Type: "size", Value: "1kg", Price: 900}}},
		}
		for i, p := range products {
			p.IsActive = true
			p.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, s.Products.Create(ctx, p))
		}

		items, _, err := s.Products.List(ctx, ProductQuery{ActiveOnly: true, Sort: SortPriceHigh})
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, []string{"variant", "offer", "flat"}, []string{items[0].Name, items[1].Name, items[2].Name})

		// Repricing through Save moves the product.
		flat := products[0]
		flat.Price = 1000
		require.NoError(t, s.Products.Save(ctx, flat))
		items, _, err = s.Products.List(ctx, ProductQuery{ActiveOnly: true, Sort: SortPriceLow})
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "flat", items[2].Name)
		assert.Equal(t, 1000.0, items[2].SortPrice)
	})

	t.Run("categories", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Categories.Create(ctx, &models.Category{Name: "Beverages", IsActive: true}))
		require.NoError(t, s.Categories.Create(ctx, &models.Category{Name: "Snacks"}))
		assert.ErrorIs(t, s.Categories.Create(ctx, &models.Category{Name: "Beverages"}), ErrDuplicate)

		c, err := s.Categories.FindByName(ctx, "beverages")
		require.NoError(t, err)
		assert.Equal(t, "Beverages", c.Name)

		_, err = s.Categories.FindByName(ctx, "bev")
		assert.ErrorIs(t, err, ErrNotFound)

		active, err := s.Categories.List(ctx, true)
		require.NoError(t, err)
		assert.Len(t, active, 1)
	})

	t.Run("orders", func(t *testing.T) {
		s := newStore(t)
		user := primitive.NewObjectID()
		partner := primitive.NewObjectID()
		now := time.Now().UTC().Truncate(time.Millisecond)

		placed := &models.Order{UserID: user, Status: models.StatusPlaced, TotalPrice: 100, CreatedAt: now}
		paid := &models.Order{UserID: user, Status: models.StatusConfirmed, TotalPrice: 60.25, PaidAt: &now,
			DeliveryPerson: &partner, CreatedAt: now.Add(time.Minute),
			UEngage: &models.CourierState{VendorOrderID: "V-1"}}
		old := &models.Order{UserID: primitive.NewObjectID(), Status: models.StatusDelivered, TotalPrice: 40,
			PaidAt: &now, CreatedAt: now.AddDate(0, 0, -3)}
		for _, o := range []*models.Order{placed, paid, old} {
			require.NoError(t, s.Orders.Create(ctx, o))
		}

		byVendor, err := s.Orders.FindByVendorOrderID(ctx, "V-1")
		require.NoError(t, err)
		assert.Equal(t, paid.ID, byVendor.ID)

		mine, err := s.Orders.ListByUser(ctx, user)
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, paid.ID, mine[0].ID)

		assigned, err := s.Orders.ListByDeliveryPerson(ctx, partner)
		require.NoError(t, err)
		assert.Len(t, assigned, 1)

		page, total, err := s.Orders.List(ctx, OrderFilter{Status: models.StatusPlaced, Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Len(t, page, 1)

		revenue, err := s.Orders.PaidRevenue(ctx, now.Add(-time.Hour), now.Add(time.Hour))
		require.NoError(t, err)
		assert.InDelta(t, 60.25, revenue, 0.001)

		buckets, err := s.Orders.SalesBuckets(ctx, UnitDay, now.AddDate(0, 0, -7), time.UTC)
		require.NoError(t, err)
		require.Len(t, buckets, 2)
		assert.Equal(t, int64(1), buckets[0].Orders)
		assert.InDelta(t, 40, buckets[0].Revenue, 0.001)

		stale, err := s.Orders.FindByID(ctx, placed.ID)
		require.NoError(t, err)
		fresh, err := s.Orders.FindByID(ctx, placed.ID)
		require.NoError(t, err)
		fresh.Status = models.StatusConfirmed
		require.NoError(t, s.Orders.Save(ctx, fresh))
		stale.Status = models.StatusCancelled
		assert.ErrorIs(t, s.Orders.Save(ctx, stale), ErrConflict)

		n, err := s.Orders.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("otp replace keeps one per phone", func(t *testing.T) {
		s := newStore(t)
		now := time.Now()
		require.NoError(t, s.Otps.Replace(ctx, &models.Otp{Phone: "9000000001", Code: "111111", ExpiresAt: now.Add(time.Minute)}))
		require.NoError(t, s.Otps.Replace(ctx, &models.Otp{Phone: "9000000001", Code: "222222", ExpiresAt: now.Add(time.Minute)}))

		live, err := s.Otps.FindLive(ctx, "9000000001", now)
		require.NoError(t, err)
		assert.Equal(t, "222222", live.Code)

		_, err = s.Otps.FindLive(ctx, "9000000001", now.Add(2*time.Minute))
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.Otps.Delete(ctx, "9000000001"))
		_, err = s.Otps.FindLive(ctx, "9000000001", now)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delivery settings default and save", func(t *testing.T) {
		s := newStore(t)
		def, err := s.Settings.Delivery(ctx)
		require.NoError(t, err)
		assert.Empty(t, def.Stores)

		require.NoError(t, s.Settings.SaveDelivery(ctx, &models.DeliverySettings{
			PricePerKm: 8,
			Stores:     []models.StoreLocation{{Name: "Central", IsActive: true}},
		}))
		got, err := s.Settings.Delivery(ctx)
		require.NoError(t, err)
		assert.Equal(t, 8.0, got.PricePerKm)
		assert.Len(t, got.ActiveStores(), 1)
	})
}

func items0ID(t *testing.T, s *Store, name string) primitive.ObjectID {
	t.Helper()
	items, _, err := s.Products.List(context.Background(), ProductQuery{Keyword: name})
	require.NoError(t, err)
	require.NotEmpty(t, items)
	return items[0].ID
}
