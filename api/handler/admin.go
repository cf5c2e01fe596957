package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/ledger/pkg/httpcontext"
)

// Replayer drives projection catch-up and rebuilds.
type Replayer interface {
	CatchUp(ctx context.Context, aggregateID string, projections ...string) (int, error)
	Rebuild(ctx context.Context, aggregateID string) (int, error)
}

type AdminHandler struct {
	baseHandler
	replayer Replayer
}

func NewAdminHandler(replayer Replayer, adapter *httpcontext.Adapter, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		baseHandler: newBaseHandler(adapter, logger),
		replayer:    replayer,
	}
}

type replayResponse struct {
	AccountID   string   `json:"account_id"`
	Events      int      `json:"events"`
	Projections []string `json:"projections,omitempty"`
}

// @Summary Replay an account stream through lagging projections
// @Tags admin
// @Router /admin/replay/{account_id} [post]
func (h *AdminHandler) Replay(ctx *fasthttp.RequestCtx) {
	id, ok := h.accountID(ctx)
	if !ok {
		return
	}

	var projections []string
	for _, p := range ctx.QueryArgs().PeekMulti("projection") {
		projections = append(projections, string(p))
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	n, err := h.replayer.CatchUp(stdCtx, id, projections...)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.logger.Info("manual catch-up completed",
		zap.String("account_id", id),
		zap.String("subject", string(ctx.Request.Header.Peek("X-Admin-Subject"))))
	h.respondSuccess(ctx, http.StatusOK, replayResponse{AccountID: id, Events: n, Projections: projections})
}

// @Summary Rebuild the read model of an account from its events
// @Tags admin
// @Router /admin/rebuild/{account_id} [post]
func (h *AdminHandler) Rebuild(ctx *fasthttp.RequestCtx) {
	id, ok := h.accountID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	n, err := h.replayer.Rebuild(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.logger.Info("read model rebuilt",
		zap.String("account_id", id),
		zap.String("subject", string(ctx.Request.Header.Peek("X-Admin-Subject"))))
	h.respondSuccess(ctx, http.StatusOK, replayResponse{AccountID: id, Events: n})
}
