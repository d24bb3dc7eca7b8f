package services

import (
	"context"
	"sync"
	"testing"

	"leasehub/internal/models"
	"leasehub/pkg/errors"
	"leasehub/pkg/events"
	"leasehub/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	doc := &models.LeaseDocument{}
	assert.Equal(t, models.LeaseStatusTemplate, DeriveStatus(doc))

	doc.SignatureRequests = []models.SignatureRequest{
		{Role: models.SignerRoleTenant, Status: models.SignatureStatusSigned},
		{Role: models.SignerRoleLandlord, Status: models.SignatureStatusPending},
	}
	assert.Equal(t, models.LeaseStatusPendingSignature, DeriveStatus(doc))

	doc.SignatureRequests[1].Status = models.SignatureStatusSigned
	assert.Equal(t, models.LeaseStatusActive, DeriveStatus(doc))

	doc.SignatureRequests[1].Status = models.SignatureStatusDeclined
	assert.Equal(t, models.LeaseStatusDeclined, DeriveStatus(doc))

	now := doc.CreatedAt
	doc.TerminatedAt = &now
	assert.Equal(t, models.LeaseStatusTerminated, DeriveStatus(doc))
}

func TestLifecycle_SignatureAggregate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.generate(t, uintPtr(42))
	assert.Equal(t, models.LeaseStatusPendingSignature, doc.Status)
	require.Len(t, doc.SignatureRequests, 2)

	got, err := f.reg.Lifecycle.RecordSignature(ctx, testOrgID, doc.ID, models.SignerRoleTenant, models.SignatureStatusSigned)
	require.NoError(t, err)
	assert.Equal(t, models.LeaseStatusPendingSignature, got.Status)

	got, err = f.reg.Lifecycle.RecordSignature(ctx, testOrgID, doc.ID, models.SignerRoleLandlord, models.SignatureStatusSigned)
	require.NoError(t, err)
	assert.Equal(t, models.LeaseStatusActive, got.Status)

	_, err = f.reg.Lifecycle.RecordSignature(ctx, testOrgID, doc.ID, models.SignerRoleTenant, models.SignatureStatusPending)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeSignatureStateConflict))

	reloaded, err := f.reg.Lifecycle.Get(ctx, testOrgID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeaseStatusActive, reloaded.Status)

	assert.Len(t, f.publisher.ofType(events.EventSignatureRecorded), 2)
	assert.Len(t, f.publisher.ofType(events.EventLeaseActivated), 1)
}

func TestLifecycle_IdempotentSigning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.generate(t, uintPtr(42))

	first, err := f.reg.Lifecycle.RecordSignature(ctx, testOrgID, doc.ID, models.SignerRoleTenant, models.SignatureStatusSigned)
	require.NoError(t, err)
	second, err := f.reg.Lifecycle.RecordSignature(ctx, testOrgID, doc.ID, models.SignerRoleTenant, models.SignatureStatusSigned)
	require.NoError(t, err)

	require.NotNil(t, first.SignatureRequests[0].SignedAt)
	require.NotNil(t, second.SignatureRequests[0].SignedAt)
	assert.True(t, first.SignatureRequests[0].SignedAt.Equal(*second.SignatureRequests[0].SignedAt))
	assert.Len(t, f.publisher.ofType(events.EventSignatureRecorded), 1)

	var signed int64
	require.NoError(t, f.db.Model(&models.SignatureRequest{}).
		Where("document_id = ? AND status = ?", doc.ID, models.SignatureStatusSigned).
		Count(&signed).Error)
	assert.EqualValues(t, 1, signed)
}

func TestLifecycle_DeclineBlocksFurtherSigning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.generate(t, uintPtr(42))

	got, err := f.reg.Lifecycle.RecordSignature(ctx, testOrgID, doc.ID, models.SignerRoleTenant, models.SignatureStatusDeclined)
	require.NoError(t, err)
	assert.Equal(t, models.LeaseStatusDeclined, got.Status)
	assert.NotNil(t, got.SignatureRequests[0].DeclinedAt)

	// 重复拒签为空操作
	_, err = f.reg.Lifecycle.RecordSignature(ctx, testOrgID, doc.ID, models.SignerRoleTenant, models.SignatureStatusDeclined)
	require.NoError(t, err)

	_, err = f.reg.Lifecycle.RecordSignature(ctx, testOrgID, doc.ID, models.SignerRoleLandlord, models.SignatureStatusSigned)
	assert.True(t, errors.Is(err, errors.CodeSignatureStateConflict))

	_, err = f.reg.Lifecycle.Terminate(ctx, testOrgID, doc.ID, "tenant walked away")
	assert.True(t, errors.Is(err, errors.CodeLeaseStateConflict))

	assert.Len(t, f.publisher.ofType(events.EventLeaseDeclined), 1)
}

func TestLifecycle_SignedCannotFlipToDeclined(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.generate(t, uintPtr(42))

	_, err := f.reg.Lifecycle.RecordSignature(ctx, testOrgID, doc.ID, models.SignerRoleLandlord, models.SignatureStatusSigned)
	require.NoError(t, err)
	_, err = f.reg.Lifecycle.RecordSignature(ctx, testOrgID, doc.ID, models.SignerRoleLandlord, models.SignatureStatusDeclined)
	assert.True(t, errors.Is(err, errors.CodeSignatureStateConflict))
}

func TestLifecycle_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.generate(t, uintPtr(42))

	_, err := f.reg.Lifecycle.RecordSignature(ctx, testOrgID, doc.ID, models.SignerRole("witness"), models.SignatureStatus("maybe"))
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.CodeValidation, appErr.Code)
	assert.Contains(t, appErr.Details, "role")
	assert.Contains(t, appErr.Details, "outcome")

	_, err = f.reg.Lifecycle.RecordSignature(ctx, 99, doc.ID, models.SignerRoleTenant, models.SignatureStatusSigned)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestLifecycle_TemplateOnlyDocumentHasNoSignatureFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.generate(t, nil)

	assert.Equal(t, models.LeaseStatusTemplate, doc.Status)
	assert.Empty(t, doc.SignatureRequests)

	_, err := f.reg.Lifecycle.RecordSignature(ctx, testOrgID, doc.ID, models.SignerRoleTenant, models.SignatureStatusSigned)
	assert.True(t, errors.Is(err, errors.CodeSignatureStateConflict))

	_, err = f.reg.Lifecycle.Terminate(ctx, testOrgID, doc.ID, "cleanup")
	assert.True(t, errors.Is(err, errors.CodeLeaseStateConflict))
}

func TestLifecycle_TerminateIsOneWay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.generate(t, uintPtr(42))

	_, err := f.reg.Lifecycle.Terminate(ctx, testOrgID, doc.ID, "  ")
	assert.True(t, errors.Is(err, errors.CodeValidation))

	got, err := f.reg.Lifecycle.Terminate(ctx, testOrgID, doc.ID, "unit sold")
	require.NoError(t, err)
	assert.Equal(t, models.LeaseStatusTerminated, got.Status)
	assert.Equal(t, "unit sold", got.TerminationReason)

	_, err = f.reg.Lifecycle.Terminate(ctx, testOrgID, doc.ID, "again")
	assert.True(t, errors.Is(err, errors.CodeLeaseStateConflict))

	_, err = f.reg.Lifecycle.RecordSignature(ctx, testOrgID, doc.ID, models.SignerRoleTenant, models.SignatureStatusSigned)
	assert.True(t, errors.Is(err, errors.CodeSignatureStateConflict))

	reloaded, err := f.reg.Lifecycle.GetByReference(ctx, testOrgID, doc.Reference)
	require.NoError(t, err)
	assert.Equal(t, models.LeaseStatusTerminated, reloaded.Status)

	terminated := f.publisher.ofType(events.EventLeaseTerminated)
	require.Len(t, terminated, 1)
	assert.Equal(t, "unit sold", terminated[0].Reason)
}

func TestLifecycle_ConcurrentSignersReachActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.generate(t, uintPtr(42))

	var wg sync.WaitGroup
	for _, role := range models.RequiredSignerRoles {
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func(r models.SignerRole) {
				defer wg.Done()
				_, err := f.reg.Lifecycle.RecordSignature(ctx, testOrgID, doc.ID, r, models.SignatureStatusSigned)
				assert.NoError(t, err)
			}(role)
		}
	}
	wg.Wait()

	got, err := f.reg.Lifecycle.Get(ctx, testOrgID, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeaseStatusActive, got.Status)
	assert.Len(t, f.publisher.ofType(events.EventSignatureRecorded), 2)
	assert.Len(t, f.publisher.ofType(events.EventLeaseActivated), 1)
}

func TestLifecycle_ListFiltersByDerivedStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.generate(t, uintPtr(1))
	active := f.generate(t, uintPtr(2))
	declined := f.generate(t, uintPtr(3))
	terminated := f.generate(t, uintPtr(4))
	template := f.generate(t, nil)

	for _, role := range models.RequiredSignerRoles {
		_, err := f.reg.Lifecycle.RecordSignature(ctx, testOrgID, active.ID, role, models.SignatureStatusSigned)
		require.NoError(t, err)
	}
	_, err := f.reg.Lifecycle.RecordSignature(ctx, testOrgID, declined.ID, models.SignerRoleLandlord, models.SignatureStatusDeclined)
	require.NoError(t, err)
	_, err = f.reg.Lifecycle.Terminate(ctx, testOrgID, terminated.ID, "unit sold")
	require.NoError(t, err)

	expect := map[models.LeaseStatus]uint{
		models.LeaseStatusPendingSignature: pending.ID,
		models.LeaseStatusActive:           active.ID,
		models.LeaseStatusDeclined:         declined.ID,
		models.LeaseStatusTerminated:       terminated.ID,
		models.LeaseStatusTemplate:         template.ID,
	}
	for status, id := range expect {
		docs, total, err := f.reg.Lifecycle.List(ctx, testOrgID, LeaseListFilter{Status: status}, pagination.Normalize(1, 10))
		require.NoError(t, err, status)
		require.EqualValues(t, 1, total, status)
		assert.Equal(t, id, docs[0].ID, status)
		assert.Equal(t, status, docs[0].Status)
	}

	all, total, err := f.reg.Lifecycle.List(ctx, testOrgID, LeaseListFilter{PropertyID: f.property.ID}, pagination.Normalize(1, 2))
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, all, 2)

	_, _, err = f.reg.Lifecycle.List(ctx, testOrgID, LeaseListFilter{Status: "archived"}, pagination.Normalize(1, 10))
	assert.True(t, errors.Is(err, errors.CodeValidation))
}
