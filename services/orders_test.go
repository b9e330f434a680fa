package services

import (
	"context"
	"testing"
	"time"

	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/store"
	"go-ecommerce-delivery/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCustomerCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, models.RoleUser)
	other := f.user(t, models.RoleUser)

	t.Run("placed order", func(t *testing.T) {
		o := f.order(t, owner, models.StatusPlaced)
		got, err := f.svc.Orders.Cancel(ctx, owner.ID, o.ID, CancelInput{Reason: "changed my mind"})
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, got.Status)
		assert.Equal(t, "changed my mind", got.CancelReason)
		require.NotNil(t, got.CancelledAt)
		assert.Equal(t, f.now, *got.CancelledAt)
	})

	t.Run("out for delivery is rejected regardless of reason", func(t *testing.T) {
		o := f.order(t, owner, models.StatusOutForDelivery)
		for _, reason := range []string{"", "late", "wrong address"} {
			_, err := f.svc.Orders.Cancel(ctx, owner.ID, o.ID, CancelInput{Reason: reason})
			requireKind(t, err, utils.KindInvalidState)
		}
		stored, err := f.store.Orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusOutForDelivery, stored.Status)
	})

	t.Run("delivered and cancelled", func(t *testing.T) {
		for _, status := range []models.OrderStatus{models.StatusDelivered, models.StatusCancelled} {
			o := f.order(t, owner, status)
			_, err := f.svc.Orders.Cancel(ctx, owner.ID, o.ID, CancelInput{Reason: "x"})
			requireKind(t, err, utils.KindInvalidState)
		}
	})

	t.Run("reason required", func(t *testing.T) {
		o := f.order(t, owner, models.StatusConfirmed)
		_, err := f.svc.Orders.Cancel(ctx, owner.ID, o.ID, CancelInput{Reason: "  "})
		requireKind(t, err, utils.KindValidation)
	})

	t.Run("someone else's order", func(t *testing.T) {
		o := f.order(t, owner, models.StatusPlaced)
		_, err := f.svc.Orders.Cancel(ctx, other.ID, o.ID, CancelInput{Reason: "x"})
		requireKind(t, err, utils.KindForbidden)

		_, err = f.svc.Orders.GetForUser(ctx, other.ID, o.ID)
		requireKind(t, err, utils.KindForbidden)
	})

	t.Run("missing order", func(t *testing.T) {
		_, err := f.svc.Orders.Cancel(ctx, owner.ID, primitive.NewObjectID(), CancelInput{Reason: "x"})
		requireKind(t, err, utils.KindNotFound)
	})
}

func TestAdminSetStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.user(t, models.RoleAdmin)
	owner := f.user(t, models.RoleUser)

	o := f.order(t, owner, models.StatusPlaced)
	got, err := f.svc.Orders.AdminSetStatus(ctx, admin.ID, o.ID, StatusInput{Status: "confirmed"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	require.NotNil(t, got.PaidAt)
	assert.True(t, got.IsPaid())

	f.now = f.now.Add(time.Hour)
	got, err = f.svc.Orders.AdminMarkDelivered(ctx, admin.ID, o.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDelivered())
	require.NotNil(t, got.DeliveredAt)
	assert.Equal(t, f.now, *got.DeliveredAt, "deliveredAt is the transition time")

	_, err = f.svc.Orders.AdminSetStatus(ctx, admin.ID, o.ID, StatusInput{Status: "cancelled"})
	requireKind(t, err, utils.KindInvalidState)

	other := f.order(t, owner, models.StatusPlaced)
	_, err = f.svc.Orders.AdminSetStatus(ctx, admin.ID, other.ID, StatusInput{Status: "shipped"})
	requireKind(t, err, utils.KindValidation)

	_, err = f.svc.Orders.AdminSetStatus(ctx, admin.ID, other.ID, StatusInput{Status: "placed"})
	requireKind(t, err, utils.KindInvalidState)
}

func TestAssignDelivery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.user(t, models.RoleAdmin)
	owner := f.user(t, models.RoleUser)
	partner := f.user(t, models.RoleDelivery)

	o := f.order(t, owner, models.StatusPlaced)
	got, err := f.svc.Orders.AssignDelivery(ctx, admin.ID, o.ID, AssignInput{DeliveryPersonID: partner.ID.Hex(), ETA: "30 mins"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	require.NotNil(t, got.DeliveryPerson)
	assert.Equal(t, partner.ID, *got.DeliveryPerson)
	assert.Equal(t, "30 mins", got.ETA)

	t.Run("non delivery user is rejected with 400", func(t *testing.T) {
		fresh := f.order(t, owner, models.StatusPlaced)
		_, err := f.svc.Orders.AssignDelivery(ctx, admin.ID, fresh.ID, AssignInput{DeliveryPersonID: owner.ID.Hex()})
		requireKind(t, err, utils.KindValidation)
		assert.Equal(t, 400, utils.AsAppError(err).StatusCode())

		_, err = f.svc.Orders.AssignDelivery(ctx, admin.ID, fresh.ID, AssignInput{DeliveryPersonID: primitive.NewObjectID().Hex()})
		requireKind(t, err, utils.KindValidation)
	})

	t.Run("partner delivers", func(t *testing.T) {
		stranger := f.user(t, models.RoleDelivery)
		_, err := f.svc.Orders.PartnerDeliver(ctx, stranger.ID, o.ID)
		requireKind(t, err, utils.KindForbidden)

		assigned, err := f.svc.Delivery.AssignedOrders(ctx, partner.ID)
		require.NoError(t, err)
		require.Len(t, assigned, 1)

		done, err := f.svc.Orders.PartnerDeliver(ctx, partner.ID, o.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDelivered, done.Status)
		require.NotNil(t, done.DeliveredAt)
	})
}

func TestAdminList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	owner := f.user(t, models.RoleUser)
	for i := 0; i < 25; i++ {
		f.order(t, owner, models.StatusPlaced)
	}
	f.order(t, owner, models.StatusDelivered)

	page, err := f.svc.Orders.AdminList(ctx, "", "2")
	require.NoError(t, err)
	assert.Equal(t, int64(26), page.Total)
	assert.Equal(t, int64(2), page.Pages)
	assert.Len(t, page.Orders, 6)

	page, err = f.svc.Orders.AdminList(ctx, "delivered", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	_, err = f.svc.Orders.AdminList(ctx, "lost", "")
	requireKind(t, err, utils.KindValidation)
}

type recorder struct {
	transitions []string
	events      []string
}

func (r *recorder) OrderTransition(actor, status string) {
	r.transitions = append(r.transitions, actor+":"+status)
}

func (r *recorder) CourierEvent(outcome string) {
	r.events = append(r.events, outcome)
}

func TestHandleCourierEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rec := &recorder{}
	f.svc.Orders.metrics = rec
	owner := f.user(t, models.RoleUser)

	t.Run("delivered sets status and timestamp regardless of prior status", func(t *testing.T) {
		o := f.order(t, owner, models.StatusPlaced)
		outcome := f.svc.Orders.HandleCourierEvent(ctx, CourierNotification{
			VendorOrderID: o.ID.Hex(), StatusCode: "DELIVERED", TaskID: "t-1",
		})
		assert.Equal(t, "applied", outcome)

		stored, err := f.store.Orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusDelivered, stored.Status)
		assert.True(t, stored.IsDelivered())
		require.NotNil(t, stored.DeliveredAt)
		assert.Equal(t, f.now, *stored.DeliveredAt)
		require.NotNil(t, stored.UEngage)
		assert.Equal(t, "t-1", stored.UEngage.TaskID)
		assert.Contains(t, rec.transitions, "courier:delivered")
	})

	t.Run("duplicate delivery is ignored", func(t *testing.T) {
		o := f.order(t, owner, models.StatusConfirmed)
		ev := CourierNotification{VendorOrderID: o.ID.Hex(), StatusCode: "DISPATCHED", TaskID: "t-2"}
		assert.Equal(t, "applied", f.svc.Orders.HandleCourierEvent(ctx, ev))
		first, err := f.store.Orders.FindByID(ctx, o.ID)
		require.NoError(t, err)

		assert.Equal(t, "duplicate", f.svc.Orders.HandleCourierEvent(ctx, ev))
		second, err := f.store.Orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, first.Version, second.Version)
	})

	t.Run("unknown vendor order id changes nothing", func(t *testing.T) {
		o := f.order(t, owner, models.StatusPlaced)
		for _, id := range []string{"UE-404", primitive.NewObjectID().Hex()} {
			outcome := f.svc.Orders.HandleCourierEvent(ctx, CourierNotification{VendorOrderID: id, StatusCode: "DELIVERED"})
			assert.Equal(t, "unresolved", outcome)
		}
		stored, err := f.store.Orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.Version, stored.Version)
		assert.Equal(t, models.StatusPlaced, stored.Status)
	})

	t.Run("resolves by courier vendor order id", func(t *testing.T) {
		o := f.order(t, owner, models.StatusPlaced)
		o.UEngage = &models.CourierState{VendorOrderID: "UE-77"}
		require.NoError(t, f.store.Orders.Save(ctx, o))

		assert.Equal(t, "applied", f.svc.Orders.HandleCourierEvent(ctx, CourierNotification{VendorOrderID: "UE-77", StatusCode: "accepted"}))
		stored, err := f.store.Orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, stored.Status)
	})

	t.Run("stale event does not regress", func(t *testing.T) {
		o := f.order(t, owner, models.StatusOutForDelivery)
		outcome := f.svc.Orders.HandleCourierEvent(ctx, CourierNotification{
			VendorOrderID: o.ID.Hex(), TaskID: "T-5", StatusCode: "ACCEPTED", Message: "rider reassigned",
		})
		assert.Equal(t, "stale", outcome)
		stored, err := f.store.Orders.FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusOutForDelivery, stored.Status)
		assert.Len(t, stored.StatusHistory, len(o.StatusHistory))
		require.NotNil(t, stored.UEngage)
		assert.Equal(t, "T-5", stored.UEngage.TaskID)
		assert.Equal(t, "ACCEPTED", stored.UEngage.StatusCode)
		assert.Equal(t, "rider reassigned", stored.UEngage.Message)
	})

	t.Run("missing fields", func(t *testing.T) {
		assert.Equal(t, "invalid", f.svc.Orders.HandleCourierEvent(ctx, CourierNotification{StatusCode: "DELIVERED"}))
		assert.Equal(t, "invalid", f.svc.Orders.HandleCourierEvent(ctx, CourierNotification{VendorOrderID: "x"}))
	})

	assert.Contains(t, rec.events, "duplicate")
	assert.Contains(t, rec.events, "unresolved")
}

// conflictingOrders fails the first saves with a version conflict.
type conflictingOrders struct {
	store.Orders
	failures int
}

func (c *conflictingOrders) Save(ctx context.Context, o *models.Order) error {
	if c.failures > 0 {
		c.failures--
		return store.ErrConflict
	}
	return c.Orders.Save(ctx, o)
}

func TestTransitionRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.user(t, models.RoleAdmin)
	o := f.order(t, f.user(t, models.RoleUser), models.StatusPlaced)

	flaky := &conflictingOrders{Orders: f.store.Orders, failures: maxSaveAttempts - 1}
	f.svc.Orders.orders = flaky
	got, err := f.svc.Orders.AdminSetStatus(ctx, admin.ID, o.ID, StatusInput{Status: "confirmed"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)

	flaky.failures = maxSaveAttempts
	_, err = f.svc.Orders.AdminSetStatus(ctx, admin.ID, o.ID, StatusInput{Status: "out_for_delivery"})
	requireKind(t, err, utils.KindConflict)
}
