package policies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nexbase/crudgate/models"
	"github.com/nexbase/crudgate/pipeline"
)

func creditGate(balance, credit int64) *mockGate {
	gate := &mockGate{}
	gate.On("Call", mock.Anything, usersGetRef, map[string]any{"id": "u1"}, mock.Anything).
		Return(map[string]any{"_id": "u1", "availableCredits": balance}, nil)
	gate.On("Call", mock.Anything, economyGetRef, mock.Anything, mock.Anything).
		Return(map[string]any{"_id": "documents.export", "credit": credit}, nil)
	return gate
}

func TestBeforeCreditableAction(t *testing.T) {
	t.Run("no annotation admits without gate traffic", func(t *testing.T) {
		gate := &mockGate{}
		meta := metaFor(nil, &models.User{ID: "u1"})
		c := newPolicyContext(t, pipeline.ActionCreate, map[string]any{"name": "First"}, meta, gate)

		require.NoError(t, BeforeCreditableAction(usersGetRef, economyGetRef)(c))
		gate.AssertNotCalled(t, "Call", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Nil(t, c.Meta.CreditAction)
	})

	t.Run("sufficient balance admits", func(t *testing.T) {
		gate := creditGate(10, -5)
		meta := metaFor(nil, &models.User{ID: "u1"})
		params := map[string]any{"name": "First", "action": "documents.export"}
		c := newPolicyContext(t, pipeline.ActionCreate, params, meta, gate)

		require.NoError(t, BeforeCreditableAction(usersGetRef, economyGetRef)(c))
		assert.NotContains(t, c.Params, "action", "annotation must not be persisted")
		require.NotNil(t, c.Meta.CreditAction)
		assert.Equal(t, "documents.export", c.Meta.CreditAction.ActionName)
	})

	t.Run("insufficient balance rejects", func(t *testing.T) {
		gate := creditGate(10, -15)
		meta := metaFor(nil, &models.User{ID: "u1"})
		params := map[string]any{"action": "documents.export"}
		c := newPolicyContext(t, pipeline.ActionCreate, params, meta, gate)

		err := BeforeCreditableAction(usersGetRef, economyGetRef)(c)
		assert.True(t, pipeline.IsActionForbidden(err))
		assert.Equal(t, "documents.export", pipeline.DetailsOf(err)["action"])
	})

	t.Run("exact zero projected balance admits", func(t *testing.T) {
		gate := creditGate(15, -15)
		meta := metaFor(nil, &models.User{ID: "u1"})
		params := map[string]any{"action": "documents.export"}
		c := newPolicyContext(t, pipeline.ActionCreate, params, meta, gate)

		assert.NoError(t, BeforeCreditableAction(usersGetRef, economyGetRef)(c))
	})

	t.Run("object annotation carries a reference", func(t *testing.T) {
		gate := creditGate(10, -5)
		meta := metaFor(nil, &models.User{ID: "u1"})
		params := map[string]any{"action": map[string]any{
			"actionName": "documents.export",
			"reference":  "order-42",
		}}
		c := newPolicyContext(t, pipeline.ActionCreate, params, meta, gate)

		require.NoError(t, BeforeCreditableAction(usersGetRef, economyGetRef)(c))
		assert.Equal(t, "order-42", c.Meta.CreditAction.Reference)
	})

	t.Run("annotated request without caller rejects", func(t *testing.T) {
		gate := &mockGate{}
		params := map[string]any{"action": "documents.export"}
		c := newPolicyContext(t, pipeline.ActionCreate, params, &pipeline.Meta{}, gate)

		err := BeforeCreditableAction(usersGetRef, economyGetRef)(c)
		assert.True(t, pipeline.IsActionForbidden(err))
	})

	t.Run("economy lookup failure rejects the whole request", func(t *testing.T) {
		gate := &mockGate{}
		gate.On("Call", mock.Anything, usersGetRef, mock.Anything, mock.Anything).
			Return(map[string]any{"_id": "u1", "availableCredits": int64(10)}, nil)
		gate.On("Call", mock.Anything, economyGetRef, mock.Anything, mock.Anything).
			Return(nil, pipeline.ErrEntityNotFound())

		meta := metaFor(nil, &models.User{ID: "u1"})
		params := map[string]any{"action": "unknown.action"}
		c := newPolicyContext(t, pipeline.ActionCreate, params, meta, gate)

		err := BeforeCreditableAction(usersGetRef, economyGetRef)(c)
		assert.True(t, pipeline.IsEntityNotFound(err))
	})
}

func TestAfterCreditableAction(t *testing.T) {
	t.Run("emits the ledger event", func(t *testing.T) {
		gate := &mockGate{}
		gate.On("Emit", CreditEventTopic, map[string]any{
			"actionName": "documents.export",
			"reference":  "order-42",
			"ownerId":    "u1",
			"ownerType":  "person",
		}).Once()

		meta := metaFor(nil, &models.User{ID: "u1", Type: "person"})
		meta.CreditAction = &models.CreditAction{ActionName: "documents.export", Reference: "order-42"}
		c := newPolicyContext(t, pipeline.ActionCreate, nil, meta, gate)

		require.NoError(t, AfterCreditableAction()(c))
		gate.AssertExpectations(t)
	})

	t.Run("no annotation means no emission", func(t *testing.T) {
		gate := &mockGate{}
		meta := metaFor(nil, &models.User{ID: "u1"})
		c := newPolicyContext(t, pipeline.ActionCreate, nil, meta, gate)

		require.NoError(t, AfterCreditableAction()(c))
		gate.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)
	})
}

func TestAsInt64(t *testing.T) {
	assert.Equal(t, int64(5), asInt64(5))
	assert.Equal(t, int64(5), asInt64(int64(5)))
	assert.Equal(t, int64(5), asInt64(5.0))
	assert.Equal(t, int64(-15), asInt64("-15"))
	assert.Equal(t, int64(0), asInt64(nil))
}
