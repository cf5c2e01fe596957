package router

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap/zaptest"

	apiHandler "github.com/fastygo/ledger/api/handler"
	"github.com/fastygo/ledger/internal/infrastructure/monitor"
	"github.com/fastygo/ledger/internal/middleware"
	"github.com/fastygo/ledger/pkg/httpcontext"
	"github.com/fastygo/ledger/repository/memory"
	"github.com/fastygo/ledger/usecase"
	accountUC "github.com/fastygo/ledger/usecase/account"
	"github.com/fastygo/ledger/usecase/projection"
)

type response struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
}

func newServer(t *testing.T) fasthttp.RequestHandler {
	t.Helper()
	log := zaptest.NewLogger(t)

	events := memory.NewEventStore()
	readModel := memory.NewAccountReadModel()
	dispatcher := usecase.NewDispatcher(events, log)
	dispatcher.Register(projection.NewReadModel(readModel, log))

	commands := accountUC.New(events, accountUC.NewEngine(accountUC.HappyPathValidator{}), dispatcher, log, accountUC.ProcessorConfig{})
	queries := accountUC.NewQueries(readModel, events, log)
	replayer := projection.NewReplayer(events, readModel, dispatcher, log)

	mon := monitor.New([]monitor.Check{{Name: "memory", Required: true, Ping: events.Ping}}, nil, time.Minute, log)
	mon.Refresh(t.Context())

	adapter := httpcontext.NewAdapter(time.Second)
	r := New(Handlers{
		Account: apiHandler.NewAccountHandler(commands, queries, adapter, log),
		Admin:   apiHandler.NewAdminHandler(replayer, adapter, log),
		Health:  apiHandler.NewHealthHandler(mon, adapter, log),
	}, middleware.JWTAuth("admin-secret", "ledger", log))
	return r.Handler
}

func call(t *testing.T, h fasthttp.RequestHandler, method, uri, body string) (int, response) {
	t.Helper()
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	h(ctx)

	var resp response
	if len(ctx.Response.Body()) > 0 {
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
	}
	return ctx.Response.StatusCode(), resp
}

func TestAccountLifecycleOverHTTP(t *testing.T) {
	h := newServer(t)

	for _, body := range []string{
		`{"OpenAccount":null}`,
		`{"DepositMoney":{"amount":1000}}`,
		`{"WithdrawMoney":{"amount":100}}`,
		`{"WriteCheck":{"check_number":"1170","amount":250}}`,
	} {
		status, resp := call(t, h, fasthttp.MethodPost, "/account/acct-1", body)
		require.Equal(t, http.StatusNoContent, status, "%s: %+v", body, resp)
	}

	status, resp := call(t, h, fasthttp.MethodGet, "/account/acct-1", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"id":"acct-1","balance":650}`, string(resp.Data))

	status, resp = call(t, h, fasthttp.MethodGet, "/account/acct-1/checks", "")
	require.Equal(t, http.StatusOK, status)
	var checks []struct {
		CheckNumber string `json:"check_number"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &checks))
	require.Len(t, checks, 1)
	assert.Equal(t, "1170", checks[0].CheckNumber)

	status, resp = call(t, h, fasthttp.MethodGet, "/account/acct-1/ledger_entries", "")
	require.Equal(t, http.StatusOK, status)
	var entries []struct {
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "deposit", entries[0].Description)
	assert.Equal(t, 1000.0, entries[0].Amount)
	assert.Equal(t, "atm_withdrawal", entries[1].Description)
	assert.Equal(t, 100.0, entries[1].Amount)
	assert.Equal(t, "1170", entries[2].Description)
	assert.Equal(t, 250.0, entries[2].Amount)

	status, resp = call(t, h, fasthttp.MethodGet, "/account/acct-1/events", "")
	require.Equal(t, http.StatusOK, status)
	var events []json.RawMessage
	require.NoError(t, json.Unmarshal(resp.Data, &events))
	assert.Len(t, events, 4)
}

func TestDepositBeforeOpenOverHTTP(t *testing.T) {
	h := newServer(t)

	status, resp := call(t, h, fasthttp.MethodPost, "/account/acct-2", `{"DepositMoney":{"amount":10}}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "AGGREGATE_STATE", resp.Code)

	status, resp = call(t, h, fasthttp.MethodGet, "/account/acct-2", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", resp.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	h := newServer(t)

	status, resp := call(t, h, fasthttp.MethodPost, "/admin/rebuild/acct-1", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", resp.Code)
}

func TestHealthRoute(t *testing.T) {
	status, resp := call(t, newServer(t), fasthttp.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", resp.Status)
}
