package service

import (
	"strings"
	"time"

	"github.com/noah-isme/sma-bulletin-api/internal/models"
	appErrors "github.com/noah-isme/sma-bulletin-api/pkg/errors"
)

// BulletinAction is a requested lifecycle operation.
type BulletinAction string

// Lifecycle actions guarded by the state machine.
const (
	ActionCalculate  BulletinAction = "calculate"
	ActionValidate   BulletinAction = "validate"
	ActionPublish    BulletinAction = "publish"
	ActionArchive    BulletinAction = "archive"
	ActionEditLines  BulletinAction = "edit lines of"
	ActionEditHeader BulletinAction = "edit"
	ActionDelete     BulletinAction = "delete"
)

type transition struct {
	from []models.BulletinState
	to   models.BulletinState
}

// transitions lists, per action, the states it may start from. A zero `to` leaves the state unchanged.
var transitions = map[BulletinAction]transition{
	ActionCalculate: {from: []models.BulletinState{models.BulletinStateDraft, models.BulletinStateCalculated}, to: models.BulletinStateCalculated},
	ActionValidate:  {from: []models.BulletinState{models.BulletinStateCalculated}, to: models.BulletinStateValidated},
	ActionPublish:   {from: []models.BulletinState{models.BulletinStateValidated}, to: models.BulletinStatePublished},
	ActionArchive: {from: []models.BulletinState{
		models.BulletinStateCalculated, models.BulletinStateValidated, models.BulletinStatePublished,
	}, to: models.BulletinStateArchived},
	ActionEditLines: {from: []models.BulletinState{models.BulletinStateDraft, models.BulletinStateCalculated}},
	ActionEditHeader: {from: []models.BulletinState{
		models.BulletinStateDraft, models.BulletinStateCalculated, models.BulletinStateValidated,
	}},
	ActionDelete: {from: []models.BulletinState{models.BulletinStateDraft}},
}

// Guard returns an illegal-transition error unless action may run from state.
func Guard(state models.BulletinState, action BulletinAction) error {
	t, ok := transitions[action]
	if !ok {
		return appErrors.IllegalTransition(string(state), string(action))
	}
	for _, s := range t.from {
		if s == state {
			return nil
		}
	}
	return appErrors.IllegalTransition(string(state), string(action))
}

// BulletinStateMachine applies guarded lifecycle transitions and their audit stamps.
type BulletinStateMachine struct {
	now func() time.Time
}

// NewBulletinStateMachine constructs the state machine using the wall clock.
func NewBulletinStateMachine() *BulletinStateMachine {
	return &BulletinStateMachine{now: func() time.Time { return time.Now().UTC() }}
}

// Apply moves b through action. reason is only read for archive, where it is mandatory.
func (m *BulletinStateMachine) Apply(b *models.Bulletin, action BulletinAction, actor, reason string) error {
	if action == ActionArchive && strings.TrimSpace(reason) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "archive reason is required")
	}
	if err := Guard(b.State, action); err != nil {
		return err
	}

	now := m.now()
	switch action {
	case ActionValidate:
		b.ValidatedBy = optionalString(actor)
		b.ValidatedAt = &now
		b.EditionDate = &now
	case ActionPublish:
		b.PublishedBy = optionalString(actor)
		b.PublishedAt = &now
	case ActionArchive:
		r := strings.TrimSpace(reason)
		b.ArchiveReason = &r
		b.ArchivedAt = &now
	}
	if to := transitions[action].to; to != "" {
		b.State = to
	}
	return nil
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
