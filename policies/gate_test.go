package policies

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/nexbase/crudgate/models"
	"github.com/nexbase/crudgate/pipeline"
)

// mockGate is a testify mock of the call gate.
type mockGate struct {
	mock.Mock
}

func (g *mockGate) Call(ctx context.Context, ref pipeline.Ref, params map[string]any, meta *pipeline.Meta) (map[string]any, error) {
	args := g.Called(ctx, ref, params, meta)
	var result map[string]any
	if v := args.Get(0); v != nil {
		result = v.(map[string]any)
	}
	return result, args.Error(1)
}

func (g *mockGate) Emit(event string, payload map[string]any) {
	g.Called(event, payload)
}

func newPolicyContext(t *testing.T, action pipeline.Action, params map[string]any, meta *pipeline.Meta, gate pipeline.Gate) *pipeline.Context {
	t.Helper()
	ref := pipeline.Ref{Service: "documents", Version: 1, Action: action}
	return pipeline.NewContext(context.Background(), ref, params, meta, gate)
}

func metaFor(tenant *models.Tenant, caller *models.User) *pipeline.Meta {
	return &pipeline.Meta{Tenant: tenant, Caller: caller}
}

var (
	getRef        = pipeline.Ref{Service: "documents", Version: 1, Action: pipeline.ActionGet}
	usersGetRef   = pipeline.Ref{Service: "users", Version: 1, Action: pipeline.ActionGet}
	economyGetRef = pipeline.Ref{Service: "action-economy", Version: 1, Action: pipeline.ActionGet}
	deletedRef    = pipeline.Ref{Service: "deleted", Version: 1, Action: pipeline.ActionCreate}
)
