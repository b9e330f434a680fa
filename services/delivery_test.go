package services

import (
	"context"
	"io"
	"strings"
	"testing"

	"go-ecommerce-delivery/models"
	"go-ecommerce-delivery/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func application() ApplyInput {
	return ApplyInput{VehicleType: "scooter", LicenseNumber: "MH12-2020", ServiceAreas: []string{" Kothrud ", "Baner"}}
}

func fileUpload(name, contentType, body string) FileUpload {
	return FileUpload{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func TestDeliveryOnboarding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, models.RoleUser)

	applied, err := f.svc.Delivery.Apply(ctx, u.ID, application())
	require.NoError(t, err)
	assert.Equal(t, models.RoleDeliveryPending, applied.Role)
	require.NotNil(t, applied.DeliveryProfile)
	assert.Equal(t, models.ApplicationPending, applied.DeliveryProfile.Status)
	assert.Equal(t, []string{"Kothrud", "Baner"}, applied.DeliveryProfile.ServiceAreas)
	assert.Equal(t, f.now, applied.DeliveryProfile.AppliedAt)

	_, err = f.svc.Delivery.Apply(ctx, u.ID, application())
	requireKind(t, err, utils.KindConflict)
	assert.EqualError(t, err, "Your application is already pending")

	pending, err := f.svc.Delivery.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, u.ID, pending[0].ID)

	approved, err := f.svc.Delivery.Approve(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDelivery, approved.Role)
	assert.Equal(t, models.ApplicationApproved, approved.DeliveryProfile.Status)
	require.NotNil(t, approved.DeliveryProfile.ReviewedAt)

	_, err = f.svc.Delivery.Approve(ctx, u.ID)
	requireKind(t, err, utils.KindInvalidState)
	assert.EqualError(t, err, "No pending application")

	_, err = f.svc.Delivery.Apply(ctx, u.ID, application())
	requireKind(t, err, utils.KindConflict)
	assert.EqualError(t, err, "You are already a delivery partner")

	partners, err := f.svc.Delivery.Partners(ctx)
	require.NoError(t, err)
	assert.Len(t, partners, 1)
}

func TestDeliveryReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, models.RoleUser)

	_, err := f.svc.Delivery.Reject(ctx, u.ID, RejectInput{Reason: "no license"})
	requireKind(t, err, utils.KindInvalidState)

	_, err = f.svc.Delivery.Apply(ctx, u.ID, application())
	require.NoError(t, err)

	rejected, err := f.svc.Delivery.Reject(ctx, u.ID, RejectInput{Reason: "license expired"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, rejected.Role)
	assert.Equal(t, models.ApplicationRejected, rejected.DeliveryProfile.Status)
	assert.Equal(t, "license expired", rejected.DeliveryProfile.RejectReason)

	_, err = f.svc.Delivery.Approve(ctx, u.ID)
	requireKind(t, err, utils.KindInvalidState)

	again, err := f.svc.Delivery.Apply(ctx, u.ID, application())
	require.NoError(t, err, "a rejected applicant may apply again")
	assert.Equal(t, models.ApplicationPending, again.DeliveryProfile.Status)
}

func TestAdminCannotApply(t *testing.T) {
	f := newFixture(t)
	admin := f.user(t, models.RoleAdmin)
	_, err := f.svc.Delivery.Apply(context.Background(), admin.ID, application())
	requireKind(t, err, utils.KindForbidden)
}

func TestUploadDocuments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, models.RoleUser)

	urls, err := f.svc.Delivery.UploadDocuments(ctx, u.ID, []FileUpload{
		fileUpload("License.PDF", "application/pdf", "%PDF-1.4"),
		fileUpload("id.png", "image/png", "png"),
	})
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.True(t, strings.HasPrefix(urls[0], "http://localhost:8000/uploads/kyc/"+u.ID.Hex()+"/"))
	assert.True(t, strings.HasSuffix(urls[0], ".pdf"))
	assert.True(t, strings.HasSuffix(urls[1], ".png"))

	applied, err := f.svc.Delivery.Apply(ctx, u.ID, application())
	require.NoError(t, err)
	assert.Equal(t, urls, applied.DeliveryProfile.Documents, "uploaded documents carry over into the application")

	_, err = f.svc.Delivery.UploadDocuments(ctx, u.ID, []FileUpload{fileUpload("run.sh", "text/x-shellscript", "#!")})
	requireKind(t, err, utils.KindValidation)

	_, err = f.svc.Delivery.UploadDocuments(ctx, u.ID, nil)
	requireKind(t, err, utils.KindValidation)
}
