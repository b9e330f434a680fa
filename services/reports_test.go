package services

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) paidOrder(t *testing.T, owner *models.User, total float64, created time.Time) *models.Order {
	t.Helper()
	o := &models.Order{
		UserID:        owner.ID,
		OrderItems:    []models.OrderItem{{Name: "Tea", Price: total, Quantity: 1}},
		PaymentMethod: "card",
		TotalPrice:    total,
		Status:        models.StatusConfirmed,
		PaidAt:        &created,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	require.NoError(t, f.store.Orders.Create(context.Background(), o))
	return o
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, models.RoleUser)
	f.user(t, models.RoleUser)
	f.user(t, models.RoleDelivery)
	f.user(t, models.RoleAdmin)

	f.paidOrder(t, owner, 100.10, f.now.Add(-time.Hour))
	f.paidOrder(t, owner, 200.20, f.now.Add(-2*time.Hour))
	f.paidOrder(t, owner, 999, f.now.AddDate(0, 0, -1))
	f.order(t, owner, models.StatusPlaced)

	s, err := f.svc.Reports.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), s.TotalOrders)
	assert.Equal(t, int64(2), s.TotalCustomers)
	assert.Equal(t, int64(1), s.ActiveDeliveryPartners)
	assert.Equal(t, 300.30, s.RevenueToday)
}

func TestSales(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, models.RoleUser)
	f.paidOrder(t, owner, 50, f.now)
	f.paidOrder(t, owner, 25, f.now.Add(-time.Hour))
	f.paidOrder(t, owner, 10, f.now.AddDate(0, 0, -3))
	f.paidOrder(t, owner, 500, f.now.AddDate(0, -6, 0))

	t.Run("daily", func(t *testing.T) {
		points, err := f.svc.Reports.Sales(ctx, "daily")
		require.NoError(t, err)
		require.Len(t, points, 30)
		last := points[29]
		assert.Equal(t, "2026-03-10", last.Period)
		assert.Equal(t, int64(2), last.Orders)
		assert.Equal(t, 75.0, last.Revenue)
		assert.Equal(t, "2026-03-07", points[26].Period)
		assert.Equal(t, int64(1), points[26].Orders)
		assert.Equal(t, int64(0), points[0].Orders)
	})

	t.Run("weekly", func(t *testing.T) {
		points, err := f.svc.Reports.Sales(ctx, "weekly")
		require.NoError(t, err)
		require.Len(t, points, 12)
		assert.Equal(t, "2026-03-09", points[11].Period, "weeks start on Monday")
		assert.Equal(t, int64(2), points[11].Orders)
		assert.Equal(t, int64(1), points[10].Orders)
	})

	t.Run("monthly", func(t *testing.T) {
		points, err := f.svc.Reports.Sales(ctx, "monthly")
		require.NoError(t, err)
		require.Len(t, points, 12)
		assert.Equal(t, "2026-03", points[11].Period)
		assert.Equal(t, int64(3), points[11].Orders)
		assert.Equal(t, "2025-09", points[5].Period)
		assert.Equal(t, 500.0, points[5].Revenue)
	})

	t.Run("unknown period", func(t *testing.T) {
		_, err := f.svc.Reports.Sales(ctx, "hourly")
		requireKind(t, err, utils.KindValidation)
	})
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, models.RoleUser)
	f.paidOrder(t, owner, 120, f.now)
	f.order(t, owner, models.StatusPlaced)
	f.product(t, f.category(t, "Tea"), "Assam", 80)

	for kind, want := range map[string]int{
		ExportOrders:    2,
		ExportCustomers: 1,
		ExportProducts:  1,
		ExportSales:     1,
	} {
		t.Run(kind, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, f.svc.Reports.Export(ctx, kind, &buf))
			var rows []map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
			assert.Len(t, rows, want)
		})
	}

	t.Run("sales rows", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, f.svc.Reports.Export(ctx, ExportSales, &buf))
		var rows []SaleRow
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, 120.0, rows[0].TotalPrice)
	})

	t.Run("empty export is an empty array", func(t *testing.T) {
		empty := newFixture(t)
		var buf bytes.Buffer
		require.NoError(t, empty.svc.Reports.Export(ctx, ExportOrders, &buf))
		assert.JSONEq(t, "[]", buf.String())
	})

	assert.False(t, ValidExportKind("invoices"))
	requireKind(t, f.svc.Reports.Export(ctx, "invoices", &bytes.Buffer{}), utils.KindNotFound)
}
