package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplicationStatus(t *testing.T) {
	assert.False(t, ApplicationStatusPending.AllowsLeaseCreation())
	assert.True(t, ApplicationStatusDocumentsSubmitted.AllowsLeaseCreation())
	assert.True(t, ApplicationStatusApproved.AllowsLeaseCreation())

	assert.True(t, ApplicationStatusPending.CanAdvanceTo(ApplicationStatusApproved))
	assert.True(t, ApplicationStatusApproved.CanAdvanceTo(ApplicationStatusApproved))
	assert.False(t, ApplicationStatusApproved.CanAdvanceTo(ApplicationStatusPending))
	assert.False(t, ApplicationStatus("withdrawn").CanAdvanceTo(ApplicationStatusApproved))
	assert.False(t, ApplicationStatus("withdrawn").Valid())
}

func TestLeaseStatus(t *testing.T) {
	assert.True(t, LeaseStatusDeclined.IsTerminal())
	assert.True(t, LeaseStatusTerminated.IsTerminal())
	assert.False(t, LeaseStatusPendingSignature.IsTerminal())
	assert.False(t, SignerRole("witness").Valid())
	assert.True(t, SignatureStatusDeclined.Valid())
}

func TestLeaseTemplate_Associations(t *testing.T) {
	template := &LeaseTemplate{Properties: []LeaseTemplateProperty{
		{PropertyID: 1, IsDefault: true},
		{PropertyID: 2},
	}}
	assert.True(t, template.IsAssociatedWith(2))
	assert.True(t, template.IsDefaultFor(1))
	assert.False(t, template.IsDefaultFor(2))
	assert.False(t, template.IsAssociatedWith(3))
}
