package httpcontext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	appLogger "github.com/fastygo/ledger/pkg/logger"
)

func TestAttachPropagatesRequestID(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.Set("X-Request-ID", "req-42")
	ctx.Request.Header.SetUserAgent("curl/8")

	stdCtx, cancel := NewAdapter(time.Second).Attach(ctx)
	defer cancel()

	assert.Equal(t, "req-42", appLogger.RequestID(stdCtx))
	assert.Equal(t, "req-42", string(ctx.Response.Header.Peek("X-Request-ID")))
	_, hasDeadline := stdCtx.Deadline()
	assert.True(t, hasDeadline)

	meta := Metadata(ctx, stdCtx)
	assert.Equal(t, "req-42", meta[MetaRequestID])
	assert.Equal(t, "req-42", meta[MetaCorrelationID])
	assert.Equal(t, "curl/8", meta[MetaUserAgent])
	assert.NotContains(t, meta, MetaCausationID)
}

func TestMetadataHonoursCorrelationHeaders(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.Set("X-Correlation-ID", "saga-7")
	ctx.Request.Header.Set("X-Causation-ID", "evt-3")

	stdCtx, cancel := NewAdapter(0).Attach(ctx)
	defer cancel()

	meta := Metadata(ctx, stdCtx)
	assert.NotEmpty(t, meta[MetaRequestID])
	assert.Equal(t, "saga-7", meta[MetaCorrelationID])
	assert.Equal(t, "evt-3", meta[MetaCausationID])
}
