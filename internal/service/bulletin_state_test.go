package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-bulletin-api/internal/models"
	appErrors "github.com/noah-isme/sma-bulletin-api/pkg/errors"
)

func fixedStateMachine() *BulletinStateMachine {
	now := time.Date(2024, 6, 28, 9, 0, 0, 0, time.UTC)
	return &BulletinStateMachine{now: func() time.Time { return now }}
}

func TestStateMachineHappyPath(t *testing.T) {
	m := fixedStateMachine()
	b := &models.Bulletin{State: models.BulletinStateDraft}

	require.NoError(t, m.Apply(b, ActionCalculate, "", ""))
	assert.Equal(t, models.BulletinStateCalculated, b.State)

	require.NoError(t, m.Apply(b, ActionCalculate, "", ""))
	assert.Equal(t, models.BulletinStateCalculated, b.State)

	require.NoError(t, m.Apply(b, ActionValidate, "teacher-1", ""))
	assert.Equal(t, models.BulletinStateValidated, b.State)
	require.NotNil(t, b.ValidatedBy)
	assert.Equal(t, "teacher-1", *b.ValidatedBy)
	require.NotNil(t, b.EditionDate)

	require.NoError(t, m.Apply(b, ActionPublish, "admin-1", ""))
	assert.Equal(t, models.BulletinStatePublished, b.State)
	require.NotNil(t, b.PublishedAt)

	require.NoError(t, m.Apply(b, ActionArchive, "admin-1", "  duplicate record "))
	assert.Equal(t, models.BulletinStateArchived, b.State)
	require.NotNil(t, b.ArchiveReason)
	assert.Equal(t, "duplicate record", *b.ArchiveReason)
}

func TestStateMachineRejectsPublishFromDraft(t *testing.T) {
	b := &models.Bulletin{State: models.BulletinStateDraft}
	err := fixedStateMachine().Apply(b, ActionPublish, "admin", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrIllegalTransition)
	assert.Contains(t, err.Error(), "publish")
	assert.Contains(t, err.Error(), "draft")
	assert.Equal(t, models.BulletinStateDraft, b.State)
}

func TestStateMachineRejectsCalculateOnPublished(t *testing.T) {
	b := &models.Bulletin{State: models.BulletinStatePublished}
	err := fixedStateMachine().Apply(b, ActionCalculate, "", "")
	assert.ErrorIs(t, err, appErrors.ErrIllegalTransition)
	assert.Equal(t, models.BulletinStatePublished, b.State)
}

func TestStateMachineRequiresArchiveReason(t *testing.T) {
	for _, reason := range []string{"", "   "} {
		b := &models.Bulletin{State: models.BulletinStateCalculated}
		err := fixedStateMachine().Apply(b, ActionArchive, "admin", reason)
		assert.ErrorIs(t, err, appErrors.ErrValidation)
		assert.Equal(t, models.BulletinStateCalculated, b.State)
		assert.Nil(t, b.ArchivedAt)
	}
}

func TestArchivedIsTerminal(t *testing.T) {
	for action := range transitions {
		err := Guard(models.BulletinStateArchived, action)
		assert.ErrorIs(t, err, appErrors.ErrIllegalTransition, string(action))
	}
}

func TestGuardTable(t *testing.T) {
	cases := []struct {
		state   models.BulletinState
		action  BulletinAction
		allowed bool
	}{
		{models.BulletinStateDraft, ActionValidate, false},
		{models.BulletinStateDraft, ActionArchive, false},
		{models.BulletinStateDraft, ActionEditLines, true},
		{models.BulletinStateDraft, ActionDelete, true},
		{models.BulletinStateCalculated, ActionEditLines, true},
		{models.BulletinStateCalculated, ActionDelete, false},
		{models.BulletinStateValidated, ActionEditLines, false},
		{models.BulletinStateValidated, ActionEditHeader, true},
		{models.BulletinStateValidated, ActionCalculate, false},
		{models.BulletinStatePublished, ActionEditHeader, false},
		{models.BulletinStatePublished, ActionArchive, true},
	}
	for _, tc := range cases {
		err := Guard(tc.state, tc.action)
		if tc.allowed {
			assert.NoError(t, err, "%s from %s", tc.action, tc.state)
		} else {
			assert.Error(t, err, "%s from %s", tc.action, tc.state)
		}
	}
}
