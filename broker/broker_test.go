package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexbase/crudgate/pipeline"
)

func testBroker() *Broker {
	return New(zap.NewNop(), DefaultBusConfig())
}

func TestBroker_Call(t *testing.T) {
	ctx := context.Background()
	ref := pipeline.Ref{Service: "documents", Version: 1, Action: pipeline.ActionGet}

	t.Run("routes to the registered action", func(t *testing.T) {
		b := testBroker()
		b.Register(ref, func(ctx context.Context, params map[string]any, meta *pipeline.Meta) (any, error) {
			return map[string]any{"_id": params["id"]}, nil
		})

		result, err := b.Call(ctx, ref, map[string]any{"id": "d1"}, &pipeline.Meta{})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"_id": "d1"}, result)
	})

	t.Run("unregistered reference is action-not-found", func(t *testing.T) {
		b := testBroker()

		_, err := b.Call(ctx, ref, nil, &pipeline.Meta{})
		require.True(t, pipeline.IsActionNotFound(err))
		assert.Equal(t, "v1.documents.get", pipeline.DetailsOf(err)["action"])
	})

	t.Run("action failures propagate", func(t *testing.T) {
		b := testBroker()
		b.Register(ref, func(ctx context.Context, params map[string]any, meta *pipeline.Meta) (any, error) {
			return nil, pipeline.ErrEntityNotFound()
		})

		_, err := b.Call(ctx, ref, nil, &pipeline.Meta{})
		assert.True(t, pipeline.IsEntityNotFound(err))
	})

	t.Run("scalar results are wrapped", func(t *testing.T) {
		b := testBroker()
		b.Register(ref, func(ctx context.Context, params map[string]any, meta *pipeline.Meta) (any, error) {
			return 42, nil
		})

		result, err := b.Call(ctx, ref, nil, &pipeline.Meta{})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"result": 42}, result)
	})

	t.Run("nil results stay nil", func(t *testing.T) {
		b := testBroker()
		b.Register(ref, func(ctx context.Context, params map[string]any, meta *pipeline.Meta) (any, error) {
			return nil, nil
		})

		result, err := b.Call(ctx, ref, nil, &pipeline.Meta{})
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("last registration wins", func(t *testing.T) {
		b := testBroker()
		b.Register(ref, func(ctx context.Context, params map[string]any, meta *pipeline.Meta) (any, error) {
			return map[string]any{"v": 1}, nil
		})
		b.Register(ref, func(ctx context.Context, params map[string]any, meta *pipeline.Meta) (any, error) {
			return map[string]any{"v": 2}, nil
		})

		result, err := b.Call(ctx, ref, nil, &pipeline.Meta{})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"v": 2}, result)
	})
}

func TestBroker_EmitReachesSubscribers(t *testing.T) {
	b := testBroker()
	require.NoError(t, b.Start())

	received := make(chan map[string]any, 1)
	b.Subscribe("log.credit.action", func(ctx context.Context, payload map[string]any) {
		received <- payload
	})

	b.Emit("log.credit.action", map[string]any{"ownerId": "u1"})

	assert.Equal(t, map[string]any{"ownerId": "u1"}, waitForEvent(t, received))
	require.NoError(t, b.Stop())
}
