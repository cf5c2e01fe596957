package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/ledger/api/transport"
	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/pkg/httpcontext"
	"github.com/fastygo/ledger/usecase"
	accountUC "github.com/fastygo/ledger/usecase/account"
)

// CommandHandler is the write side used by AccountHandler.
type CommandHandler interface {
	Handle(ctx context.Context, aggregateID string, cmd domain.Command, metadata map[string]string) (*accountUC.Result, error)
}

// AccountQueries is the read side used by AccountHandler.
type AccountQueries interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListChecks(ctx context.Context, accountID string) ([]domain.Check, error)
	ListLedgerEntries(ctx context.Context, accountID string) ([]domain.LedgerEntry, error)
	ListEvents(ctx context.Context, accountID string) ([]domain.Envelope, error)
}

type AccountHandler struct {
	baseHandler
	commands CommandHandler
	queries  AccountQueries
}

func NewAccountHandler(commands CommandHandler, queries AccountQueries, adapter *httpcontext.Adapter, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		baseHandler: newBaseHandler(adapter, logger),
		commands:    commands,
		queries:     queries,
	}
}

// @Summary Execute account command
// @Tags accounts
// @Router /account/{account_id} [post]
func (h *AccountHandler) Command(ctx *fasthttp.RequestCtx) {
	id, ok := h.accountID(ctx)
	if !ok {
		return
	}

	cmd, err := transport.DecodeCommand(ctx.PostBody())
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	result, err := h.commands.Handle(stdCtx, id, cmd, httpcontext.Metadata(ctx, stdCtx))
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	if result.ProjectionErr != nil {
		pending := transport.ProjectionPending{Sequence: result.Committed()}
		var projErr *usecase.ProjectionError
		if errors.As(result.ProjectionErr, &projErr) {
			pending.Projections = projErr.Projections()
		}
		h.respondJSON(ctx, http.StatusAccepted, transport.NewAccepted(transport.CodeProjectionPending, pending))
		return
	}

	ctx.SetStatusCode(http.StatusNoContent)
}

// @Summary Get account balance
// @Tags accounts
// @Router /account/{account_id} [get]
func (h *AccountHandler) GetAccount(ctx *fasthttp.RequestCtx) {
	id, ok := h.accountID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	account, err := h.queries.GetAccount(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, account)
}

// @Summary List written checks
// @Tags accounts
// @Router /account/{account_id}/checks [get]
func (h *AccountHandler) ListChecks(ctx *fasthttp.RequestCtx) {
	id, ok := h.accountID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	checks, err := h.queries.ListChecks(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, checks)
}

// @Summary List ledger entries
// @Tags accounts
// @Router /account/{account_id}/ledger_entries [get]
func (h *AccountHandler) ListLedgerEntries(ctx *fasthttp.RequestCtx) {
	id, ok := h.accountID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	entries, err := h.queries.ListLedgerEntries(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, entries)
}

// @Summary List stored events
// @Tags accounts
// @Router /account/{account_id}/events [get]
func (h *AccountHandler) ListEvents(ctx *fasthttp.RequestCtx) {
	id, ok := h.accountID(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	events, err := h.queries.ListEvents(stdCtx, id)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, events)
}
