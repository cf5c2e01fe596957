package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/ledger/pkg/logger"
)

// Key represents a context value key exported for reuse.
type Key string

const (
	KeyRemoteAddr Key = "remote_addr"
	KeyUserAgent  Key = "user_agent"
)

// Metadata keys attached to every event a request produces.
const (
	MetaRequestID     = "request_id"
	MetaCorrelationID = "correlation_id"
	MetaCausationID   = "causation_id"
	MetaUserAgent     = "user_agent"
	MetaRemoteAddr    = "remote_addr"
)

// Adapter converts fasthttp.RequestCtx into a stdlib context with deadlines and metadata.
type Adapter struct {
	timeout time.Duration
}

// NewAdapter constructs a new Adapter using the provided timeout.
func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{
		timeout: timeout,
	}
}

// Attach creates a context with timeout derived from the adapter and enriches it with request metadata.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	reqID := getRequestID(ctx)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)
	ctx.Response.Header.Set("X-Request-ID", reqID)

	if remoteAddr := ctx.RemoteAddr(); remoteAddr != nil {
		stdCtx = context.WithValue(stdCtx, KeyRemoteAddr, remoteAddr.String())
	}
	if ua := string(ctx.Request.Header.UserAgent()); ua != "" {
		stdCtx = context.WithValue(stdCtx, KeyUserAgent, ua)
	}

	return stdCtx, cancel
}

// Metadata collects the request identifiers that are stored with events.
// It must be called with the context returned by Attach.
func Metadata(ctx *fasthttp.RequestCtx, stdCtx context.Context) map[string]string {
	meta := make(map[string]string, 5)

	reqID := appLogger.RequestID(stdCtx)
	if reqID != "" {
		meta[MetaRequestID] = reqID
	}

	correlation := strings.TrimSpace(string(ctx.Request.Header.Peek("X-Correlation-ID")))
	if correlation == "" {
		correlation = reqID
	}
	if correlation != "" {
		meta[MetaCorrelationID] = correlation
	}
	if causation := strings.TrimSpace(string(ctx.Request.Header.Peek("X-Causation-ID"))); causation != "" {
		meta[MetaCausationID] = causation
	}
	if ua, ok := stdCtx.Value(KeyUserAgent).(string); ok {
		meta[MetaUserAgent] = ua
	}
	if addr, ok := stdCtx.Value(KeyRemoteAddr).(string); ok {
		meta[MetaRemoteAddr] = addr
	}
	return meta
}

func getRequestID(ctx *fasthttp.RequestCtx) string {
	if ctx == nil {
		return uuid.NewString()
	}
	if header := string(ctx.Request.Header.Peek("X-Request-ID")); strings.TrimSpace(header) != "" {
		return header
	}
	return uuid.NewString()
}
