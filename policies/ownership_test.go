package policies

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nexbase/crudgate/models"
	"github.com/nexbase/crudgate/pipeline"
)

func ownedEntity(authorID string) map[string]any {
	return map[string]any{
		"_id":    "d1",
		"author": map[string]any{"_id": authorID},
	}
}

func TestEditableOnlyByOwner(t *testing.T) {
	t.Run("owner passes and author param is stripped", func(t *testing.T) {
		gate := &mockGate{}
		gate.On("Call", mock.Anything, getRef, map[string]any{"id": "d1"}, mock.Anything).
			Return(ownedEntity("u1"), nil)

		meta := metaFor(nil, &models.User{ID: "u1"})
		params := map[string]any{"id": "d1", "author": map[string]any{"_id": "someone-else"}}
		c := newPolicyContext(t, pipeline.ActionUpdate, params, meta, gate)

		require.NoError(t, EditableOnlyByOwner(getRef, "documents")(c))
		assert.NotContains(t, c.Params, "author", "update payload must not reassign authorship")
	})

	t.Run("non-owner is forbidden", func(t *testing.T) {
		gate := &mockGate{}
		gate.On("Call", mock.Anything, getRef, mock.Anything, mock.Anything).
			Return(ownedEntity("u1"), nil)

		meta := metaFor(nil, &models.User{ID: "u2"})
		c := newPolicyContext(t, pipeline.ActionUpdate, map[string]any{"id": "d1"}, meta, gate)

		err := EditableOnlyByOwner(getRef, "documents")(c)
		assert.True(t, pipeline.IsForbidden(err))
	})

	t.Run("missing caller is forbidden", func(t *testing.T) {
		gate := &mockGate{}
		gate.On("Call", mock.Anything, getRef, mock.Anything, mock.Anything).
			Return(ownedEntity("u1"), nil)

		c := newPolicyContext(t, pipeline.ActionUpdate, map[string]any{"id": "d1"}, &pipeline.Meta{}, gate)

		err := EditableOnlyByOwner(getRef, "documents")(c)
		assert.True(t, pipeline.IsForbidden(err))
	})

	t.Run("lookup failure propagates unchanged", func(t *testing.T) {
		gate := &mockGate{}
		gate.On("Call", mock.Anything, getRef, mock.Anything, mock.Anything).
			Return(nil, pipeline.ErrEntityNotFound())

		meta := metaFor(nil, &models.User{ID: "u1"})
		c := newPolicyContext(t, pipeline.ActionUpdate, map[string]any{"id": "missing"}, meta, gate)

		err := EditableOnlyByOwner(getRef, "documents")(c)
		assert.True(t, pipeline.IsEntityNotFound(err))
		assert.False(t, pipeline.IsForbidden(err))
	})

	t.Run("users entities own themselves", func(t *testing.T) {
		gate := &mockGate{}
		gate.On("Call", mock.Anything, usersGetRef, map[string]any{"id": "u1"}, mock.Anything).
			Return(map[string]any{"_id": "u1"}, nil)

		meta := metaFor(nil, &models.User{ID: "u1"})
		c := newPolicyContext(t, pipeline.ActionUpdate, map[string]any{"id": "u1"}, meta, gate)

		assert.NoError(t, EditableOnlyByOwner(usersGetRef, "users")(c))
	})
}

func TestEditableOnlyByOwnerOrAdmin(t *testing.T) {
	tests := []struct {
		name      string
		caller    *models.User
		authorID  string
		forbidden bool
	}{
		{
			name:     "owner with normal role passes",
			caller:   &models.User{ID: "u1", Role: models.RoleNormal},
			authorID: "u1",
		},
		{
			name:     "admin non-owner passes",
			caller:   &models.User{ID: "u2", Role: models.RoleAdmin},
			authorID: "u1",
		},
		{
			name:      "normal non-owner is forbidden",
			caller:    &models.User{ID: "u2", Role: models.RoleNormal},
			authorID:  "u1",
			forbidden: true,
		},
		{
			// The admission condition only rejects when a role value is
			// present and not admin.
			name:     "roleless non-owner passes",
			caller:   &models.User{ID: "u2"},
			authorID: "u1",
		},
		{
			name:     "missing caller with no role passes",
			caller:   nil,
			authorID: "u1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := &mockGate{}
			gate.On("Call", mock.Anything, getRef, mock.Anything, mock.Anything).
				Return(ownedEntity(tt.authorID), nil)

			meta := metaFor(nil, tt.caller)
			c := newPolicyContext(t, pipeline.ActionUpdate, map[string]any{"id": "d1"}, meta, gate)

			err := EditableOnlyByOwnerOrAdmin(getRef, "documents")(c)
			if tt.forbidden {
				assert.True(t, pipeline.IsForbidden(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
