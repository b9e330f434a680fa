package lifecycle

import (
	"errors"
	"testing"
	"time"

	"go-ecommerce-delivery/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newOrder(status models.OrderStatus) *models.Order {
	return &models.Order{
		ID:     primitive.NewObjectID(),
		UserID: primitive.NewObjectID(),
		Status: status,
	}
}

func partner(role models.Role) *models.User {
	return &models.User{ID: primitive.NewObjectID(), Username: "rider", Role: role}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    models.OrderStatus
		to      models.OrderStatus
		actor   Actor
		wantErr error
	}{
		{"admin confirms placed", models.StatusPlaced, models.StatusConfirmed, ActorAdmin, nil},
		{"admin cannot reopen to placed", models.StatusConfirmed, models.StatusPlaced, ActorAdmin, &TransitionError{}},
		{"admin blocked on delivered", models.StatusDelivered, models.StatusCancelled, ActorAdmin, ErrTerminal},
		{"admin blocked on cancelled", models.StatusCancelled, models.StatusConfirmed, ActorAdmin, ErrTerminal},
		{"unknown target", models.StatusPlaced, models.OrderStatus("shipped"), ActorAdmin, ErrUnknownStatus},
		{"partner delivers confirmed", models.StatusConfirmed, models.StatusDelivered, ActorDelivery, nil},
		{"partner cannot deliver placed", models.StatusPlaced, models.StatusDelivered, ActorDelivery, &TransitionError{}},
		{"customer cancels placed", models.StatusPlaced, models.StatusCancelled, ActorCustomer, nil},
		{"customer cannot cancel out for delivery", models.StatusOutForDelivery, models.StatusCancelled, ActorCustomer, &TransitionError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanTransition(tt.from, tt.to, tt.actor)
			switch want := tt.wantErr.(type) {
			case nil:
				assert.NoError(t, err)
			case *TransitionError:
				var te *TransitionError
				require.True(t, errors.As(err, &te), "got %v", err)
				assert.Contains(t, te.Error(), "valid next statuses")
			default:
				assert.ErrorIs(t, err, want)
			}
		})
	}
}

func TestValidTransitionsFrom(t *testing.T) {
	assert.ElementsMatch(t,
		[]models.OrderStatus{models.StatusCancelled},
		ValidTransitionsFrom(models.StatusConfirmed, ActorCustomer))
	assert.Empty(t, ValidTransitionsFrom(models.StatusDelivered, ActorAdmin))
}

func TestAdminSetStatus(t *testing.T) {
	adminID := primitive.NewObjectID()

	t.Run("confirmed marks paid", func(t *testing.T) {
		o := newOrder(models.StatusPlaced)
		require.NoError(t, AdminSetStatus(o, models.StatusConfirmed, "", adminID, now))
		assert.Equal(t, models.StatusConfirmed, o.Status)
		require.NotNil(t, o.PaidAt)
		assert.True(t, o.IsPaid())
		assert.Equal(t, now, *o.PaidAt)
		require.Len(t, o.StatusHistory, 1)
		assert.Equal(t, models.StatusPlaced, o.StatusHistory[0].From)
		assert.Equal(t, "admin", o.StatusHistory[0].Actor)
	})

	t.Run("reconfirm keeps first paidAt", func(t *testing.T) {
		o := newOrder(models.StatusConfirmed)
		earlier := now.Add(-time.Hour)
		o.PaidAt = &earlier
		require.NoError(t, AdminSetStatus(o, models.StatusConfirmed, "", adminID, now))
		assert.Equal(t, earlier, *o.PaidAt)
		assert.Empty(t, o.StatusHistory)
	})

	t.Run("delivered stamps deliveredAt", func(t *testing.T) {
		o := newOrder(models.StatusOutForDelivery)
		require.NoError(t, AdminSetStatus(o, models.StatusDelivered, "", adminID, now))
		assert.True(t, o.IsDelivered())
		require.NotNil(t, o.DeliveredAt)
		assert.Equal(t, now, *o.DeliveredAt)
	})

	t.Run("cancelled clears assignment", func(t *testing.T) {
		o := newOrder(models.StatusConfirmed)
		rider := primitive.NewObjectID()
		o.DeliveryPerson = &rider
		o.ETA = "30 mins"
		require.NoError(t, AdminSetStatus(o, models.StatusCancelled, " out of stock ", adminID, now))
		assert.Equal(t, models.StatusCancelled, o.Status)
		assert.Equal(t, "out of stock", o.CancelReason)
		assert.Nil(t, o.DeliveryPerson)
		assert.Empty(t, o.ETA)
		require.NotNil(t, o.CancelledAt)
	})

	t.Run("cancel without reason is accepted", func(t *testing.T) {
		o := newOrder(models.StatusPlaced)
		require.NoError(t, AdminSetStatus(o, models.StatusCancelled, "", adminID, now))
		assert.Empty(t, o.CancelReason)
	})

	t.Run("terminal orders are frozen", func(t *testing.T) {
		o := newOrder(models.StatusDelivered)
		delivered := now.Add(-time.Hour)
		o.DeliveredAt = &delivered
		err := AdminSetStatus(o, models.StatusConfirmed, "", adminID, now)
		assert.ErrorIs(t, err, ErrTerminal)
		assert.Equal(t, models.StatusDelivered, o.Status)
		assert.Equal(t, delivered, *o.DeliveredAt)
	})
}

func TestAssignDeliveryPerson(t *testing.T) {
	adminID := primitive.NewObjectID()

	t.Run("assignment confirms order", func(t *testing.T) {
		o := newOrder(models.StatusPlaced)
		p := partner(models.RoleDelivery)
		require.NoError(t, AssignDeliveryPerson(o, p, "30 mins", adminID, now))
		assert.Equal(t, models.StatusConfirmed, o.Status)
		require.NotNil(t, o.DeliveryPerson)
		assert.Equal(t, p.ID, *o.DeliveryPerson)
		assert.Equal(t, "30 mins", o.ETA)
	})

	t.Run("reassignment on confirmed is audited", func(t *testing.T) {
		o := newOrder(models.StatusConfirmed)
		require.NoError(t, AssignDeliveryPerson(o, partner(models.RoleDelivery), "", adminID, now))
		require.Len(t, o.StatusHistory, 1)
		assert.Equal(t, "assigned to rider", o.StatusHistory[0].Note)
	})

	for _, role := range []models.Role{models.RoleUser, models.RoleDeliveryPending, models.RoleAdmin} {
		t.Run("rejects role "+string(role), func(t *testing.T) {
			o := newOrder(models.StatusPlaced)
			err := AssignDeliveryPerson(o, partner(role), "30 mins", adminID, now)
			assert.ErrorIs(t, err, ErrNotDeliveryPartner)
			assert.Nil(t, o.DeliveryPerson)
			assert.Equal(t, models.StatusPlaced, o.Status)
		})
	}

	t.Run("rejects out for delivery", func(t *testing.T) {
		o := newOrder(models.StatusOutForDelivery)
		var te *TransitionError
		assert.ErrorAs(t, AssignDeliveryPerson(o, partner(models.RoleDelivery), "", adminID, now), &te)
	})

	t.Run("rejects terminal", func(t *testing.T) {
		o := newOrder(models.StatusCancelled)
		assert.ErrorIs(t, AssignDeliveryPerson(o, partner(models.RoleDelivery), "", adminID, now), ErrTerminal)
	})
}

func TestMarkDelivered(t *testing.T) {
	rider := primitive.NewObjectID()

	t.Run("assigned partner delivers", func(t *testing.T) {
		o := newOrder(models.StatusOutForDelivery)
		o.DeliveryPerson = &rider
		require.NoError(t, MarkDelivered(o, rider, now))
		assert.Equal(t, models.StatusDelivered, o.Status)
		assert.True(t, o.IsDelivered())
		assert.Equal(t, now, *o.DeliveredAt)
	})

	t.Run("other partner is refused", func(t *testing.T) {
		o := newOrder(models.StatusConfirmed)
		o.DeliveryPerson = &rider
		assert.ErrorIs(t, MarkDelivered(o, primitive.NewObjectID(), now), ErrNotAssigned)
		assert.Nil(t, o.DeliveredAt)
	})

	t.Run("unassigned order is refused", func(t *testing.T) {
		o := newOrder(models.StatusConfirmed)
		assert.ErrorIs(t, MarkDelivered(o, rider, now), ErrNotAssigned)
	})

	t.Run("already delivered", func(t *testing.T) {
		o := newOrder(models.StatusDelivered)
		o.DeliveryPerson = &rider
		assert.ErrorIs(t, MarkDelivered(o, rider, now), ErrTerminal)
	})
}

func TestCustomerCancel(t *testing.T) {
	t.Run("owner cancels placed order", func(t *testing.T) {
		o := newOrder(models.StatusPlaced)
		require.NoError(t, CustomerCancel(o, o.UserID, "changed my mind", now))
		assert.Equal(t, models.StatusCancelled, o.Status)
		assert.Equal(t, "changed my mind", o.CancelReason)
		assert.Equal(t, now, *o.CancelledAt)
	})

	tests := []struct {
		name    string
		status  models.OrderStatus
		reason  string
		owner   bool
		wantErr error
	}{
		{"out for delivery regardless of reason", models.StatusOutForDelivery, "late", true, ErrOutForDelivery},
		{"out for delivery without reason", models.StatusOutForDelivery, "", true, ErrOutForDelivery},
		{"delivered", models.StatusDelivered, "late", true, ErrAlreadyDelivered},
		{"already cancelled", models.StatusCancelled, "late", true, ErrAlreadyCancelled},
		{"blank reason", models.StatusConfirmed, "   ", true, ErrReasonRequired},
		{"not owner", models.StatusPlaced, "late", false, ErrNotOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrder(tt.status)
			caller := o.UserID
			if !tt.owner {
				caller = primitive.NewObjectID()
			}
			err := CustomerCancel(o, caller, tt.reason, now)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.status, o.Status)
			assert.Nil(t, o.CancelledAt)
		})
	}
}

func TestRankIsMonotonicAlongHappyPath(t *testing.T) {
	path := []models.OrderStatus{
		models.StatusPlaced, models.StatusConfirmed, models.StatusOutForDelivery, models.StatusDelivered,
	}
	for i := 1; i < len(path); i++ {
		assert.Greater(t, Rank(path[i]), Rank(path[i-1]))
	}
	assert.Equal(t, -1, Rank(models.OrderStatus("bogus")))
}
