package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nexbase/crudgate/middleware"
	"github.com/nexbase/crudgate/pipeline"
	"github.com/nexbase/crudgate/utils"
)

// ActionHandler exposes registered service actions over HTTP. The request
// body is the action's params document; the authenticated caller's metadata
// rides along from the auth middleware.
type ActionHandler struct {
	gate   pipeline.Gate
	logger *zap.Logger
}

// NewActionHandler creates a new ActionHandler
func NewActionHandler(gate pipeline.Gate, logger *zap.Logger) *ActionHandler {
	return &ActionHandler{
		gate:   gate,
		logger: logger,
	}
}

// HandleInvoke handles POST /api/v{version}/{service}/{action}
func (h *ActionHandler) HandleInvoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		_ = utils.WriteBadRequest(w, "invalid version segment", nil)
		return
	}

	ref := pipeline.Ref{
		Service: chi.URLParam(r, "service"),
		Version: version,
		Action:  pipeline.Action(chi.URLParam(r, "action")),
	}

	params, err := decodeParams(r.Body)
	if err != nil {
		h.logger.Warn("invalid request body",
			zap.String("request_id", requestID),
			zap.String("action", ref.String()),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "request body must be a JSON object", nil)
		return
	}

	meta := middleware.GetMetaFromContext(ctx)

	result, err := h.gate.Call(ctx, ref, params, meta)
	if err != nil {
		HandleServiceError(w, err, h.logger.With(
			zap.String("request_id", requestID),
			zap.String("action", ref.String())))
		return
	}

	_ = utils.WriteOK(w, result)
}

// decodeParams reads the request body as the params document. An empty body
// yields empty params.
func decodeParams(body io.Reader) (map[string]any, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]any{}
	}
	return params, nil
}
