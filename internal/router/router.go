package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/ledger/api/handler"
	"github.com/fastygo/ledger/internal/middleware"
)

type Handlers struct {
	Account *apiHandler.AccountHandler
	Admin   *apiHandler.AdminHandler
	Health  *apiHandler.HealthHandler
	Metrics fasthttp.RequestHandler
}

func New(handlers Handlers, adminAuth middleware.Middleware) *router.Router {
	if adminAuth == nil {
		adminAuth = middleware.Passthrough
	}
	r := router.New()

	r.GET("/health", handlers.Health.Check)
	if handlers.Metrics != nil {
		r.GET("/metrics", handlers.Metrics)
	}

	r.POST("/account/{account_id}", handlers.Account.Command)
	r.GET("/account/{account_id}", handlers.Account.GetAccount)
	r.GET("/account/{account_id}/checks", handlers.Account.ListChecks)
	r.GET("/account/{account_id}/ledger_entries", handlers.Account.ListLedgerEntries)
	r.GET("/account/{account_id}/events", handlers.Account.ListEvents)

	// Admin routes
	if handlers.Admin != nil {
		r.POST("/admin/replay/{account_id}", adminAuth(handlers.Admin.Replay))
		r.POST("/admin/rebuild/{account_id}", adminAuth(handlers.Admin.Rebuild))
	}

	return r
}
