package policies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexbase/crudgate/models"
	"github.com/nexbase/crudgate/pipeline"
)

func TestAddAuthor(t *testing.T) {
	t.Run("stamps the caller", func(t *testing.T) {
		meta := metaFor(nil, &models.User{ID: "u1", FirstName: "Ada"})
		c := newPolicyContext(t, pipeline.ActionCreate, map[string]any{"name": "First"}, meta, nil)

		require.NoError(t, AddAuthor()(c))
		assert.Equal(t, map[string]any{"_id": "u1", "firstName": "Ada"}, c.Params["author"])
	})

	t.Run("falls back to the anonymous author", func(t *testing.T) {
		c := newPolicyContext(t, pipeline.ActionCreate, map[string]any{}, &pipeline.Meta{}, nil)

		require.NoError(t, AddAuthor()(c))
		assert.Equal(t, map[string]any{"_id": models.AnonymousAuthorID}, c.Params["author"])
	})
}

func TestTimestampStamps(t *testing.T) {
	before := time.Now().UnixMilli()
	c := newPolicyContext(t, pipeline.ActionCreate, map[string]any{}, &pipeline.Meta{}, nil)

	require.NoError(t, AddCreatedAt()(c))
	require.NoError(t, AddUpdatedAt()(c))
	after := time.Now().UnixMilli()

	createdAt := c.Params["createdAt"].(int64)
	updatedAt := c.Params["updatedAt"].(int64)
	assert.GreaterOrEqual(t, createdAt, before)
	assert.LessOrEqual(t, updatedAt, after)
}

func TestAddUpdatedBy(t *testing.T) {
	meta := metaFor(nil, &models.User{ID: "u1"})
	c := newPolicyContext(t, pipeline.ActionUpdate, map[string]any{}, meta, nil)

	require.NoError(t, AddUpdatedBy()(c))
	assert.Equal(t, map[string]any{"_id": "u1"}, c.Params["updatedBy"])
}

func TestAddState(t *testing.T) {
	c := newPolicyContext(t, pipeline.ActionCreate, map[string]any{}, &pipeline.Meta{}, nil)

	require.NoError(t, AddState("new")(c))
	assert.Equal(t, "new", c.Params["state"])
}

func TestAddSlug(t *testing.T) {
	t.Run("derives from the name", func(t *testing.T) {
		c := newPolicyContext(t, pipeline.ActionCreate, map[string]any{"name": "Hello, World!"}, &pipeline.Meta{}, nil)

		require.NoError(t, AddSlug()(c))
		assert.Equal(t, "hello-world", c.Params["slug"])
	})

	t.Run("no name means no slug", func(t *testing.T) {
		c := newPolicyContext(t, pipeline.ActionCreate, map[string]any{}, &pipeline.Meta{}, nil)

		require.NoError(t, AddSlug()(c))
		assert.NotContains(t, c.Params, "slug")
	})
}

func TestStampUpdateDocument(t *testing.T) {
	t.Run("stamps into an existing $set", func(t *testing.T) {
		meta := metaFor(nil, &models.User{ID: "u1"})
		params := map[string]any{"update": map[string]any{
			"$set": map[string]any{"state": "archived"},
		}}
		c := newPolicyContext(t, pipeline.ActionUpdate, params, meta, nil)

		require.NoError(t, StampUpdateDocument()(c))

		set := c.Params["update"].(map[string]any)["$set"].(map[string]any)
		assert.Equal(t, "archived", set["state"])
		assert.NotZero(t, set["updatedAt"])
		assert.Equal(t, map[string]any{"_id": "u1"}, set["updatedBy"])
	})

	t.Run("creates the $set when absent", func(t *testing.T) {
		params := map[string]any{"update": map[string]any{}}
		c := newPolicyContext(t, pipeline.ActionUpdate, params, &pipeline.Meta{}, nil)

		require.NoError(t, StampUpdateDocument()(c))
		set := c.Params["update"].(map[string]any)["$set"].(map[string]any)
		assert.NotZero(t, set["updatedAt"])
	})

	t.Run("no update document is a no-op", func(t *testing.T) {
		c := newPolicyContext(t, pipeline.ActionUpdate, map[string]any{"id": "d1"}, &pipeline.Meta{}, nil)
		assert.NoError(t, StampUpdateDocument()(c))
	})
}

func TestAddOnlyOwnedToQuery(t *testing.T) {
	t.Run("narrows to the caller", func(t *testing.T) {
		meta := metaFor(nil, &models.User{ID: "u1"})
		c := newPolicyContext(t, pipeline.ActionFind, nil, meta, nil)

		require.NoError(t, AddOnlyOwnedToQuery()(c))
		assert.Equal(t, "u1", c.Query()["author._id"])
	})

	t.Run("missing caller is forbidden", func(t *testing.T) {
		c := newPolicyContext(t, pipeline.ActionFind, nil, &pipeline.Meta{}, nil)
		assert.True(t, pipeline.IsForbidden(AddOnlyOwnedToQuery()(c)))
	})
}

func TestAddOnlyOwnedOrAdminToQuery(t *testing.T) {
	t.Run("admin sees everything", func(t *testing.T) {
		meta := metaFor(nil, &models.User{ID: "u1", Role: models.RoleAdmin})
		c := newPolicyContext(t, pipeline.ActionFind, nil, meta, nil)

		require.NoError(t, AddOnlyOwnedOrAdminToQuery()(c))
		assert.NotContains(t, c.Query(), "author._id")
	})

	t.Run("normal callers are narrowed", func(t *testing.T) {
		meta := metaFor(nil, &models.User{ID: "u1", Role: models.RoleNormal})
		c := newPolicyContext(t, pipeline.ActionFind, nil, meta, nil)

		require.NoError(t, AddOnlyOwnedOrAdminToQuery()(c))
		assert.Equal(t, "u1", c.Query()["author._id"])
	})
}

func TestAddRecipientOrSenderToQuery(t *testing.T) {
	t.Run("matches authored sent and received", func(t *testing.T) {
		meta := metaFor(nil, &models.User{ID: "u1"})
		c := newPolicyContext(t, pipeline.ActionFind, nil, meta, nil)

		require.NoError(t, AddRecipientOrSenderToQuery()(c))
		assert.Equal(t, []any{
			map[string]any{"author._id": "u1"},
			map[string]any{"senderId": "u1"},
			map[string]any{"recipientId": "u1"},
		}, c.Query()["$or"])
	})

	t.Run("business identity widens the match", func(t *testing.T) {
		meta := metaFor(nil, &models.User{ID: "u1", BusinessID: "biz-1"})
		c := newPolicyContext(t, pipeline.ActionFind, nil, meta, nil)

		require.NoError(t, AddRecipientOrSenderToQuery()(c))
		alternatives := c.Query()["$or"].([]any)
		require.Len(t, alternatives, 5)
		assert.Contains(t, alternatives, map[string]any{"senderId": "biz-1"})
		assert.Contains(t, alternatives, map[string]any{"recipientId": "biz-1"})
	})

	t.Run("missing caller is forbidden", func(t *testing.T) {
		c := newPolicyContext(t, pipeline.ActionFind, nil, &pipeline.Meta{}, nil)
		assert.True(t, pipeline.IsForbidden(AddRecipientOrSenderToQuery()(c)))
	})
}

func TestDisable(t *testing.T) {
	c := newPolicyContext(t, pipeline.ActionInsert, nil, &pipeline.Meta{}, nil)
	assert.True(t, pipeline.IsActionNotFound(Disable()(c)))
}
