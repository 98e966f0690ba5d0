package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartSpanEndWithError(t *testing.T) {
	ctx, span := StartSpan(context.Background(), SpanPortmapGetPort)
	assert.NotNil(t, ctx)
	assert.NotNil(t, span)

	EndWithError(span, nil)

	_, span2 := StartSpan(context.Background(), SpanMountMnt, RPCAttrs(1, 100005, 3, 1)...)
	EndWithError(span2, errors.New("boom"))
}

func TestStartSpanIfDisabledRecordsNothing(t *testing.T) {
	ctx, span := StartSpanIf(context.Background(), false, SpanNFSCall)
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid(), "disabled span must not carry a real span context")
	EndWithError(span, errors.New("ignored"))

	_, enabled := StartSpanIf(context.Background(), true, SpanNFSCall)
	enabled.End()
}

func TestRPCAttrs(t *testing.T) {
	attrs := RPCAttrs(42, 100003, 3, 4)
	assert.Len(t, attrs, 4)
	assert.Equal(t, AttrRPCXID, string(attrs[0].Key))
	assert.Equal(t, int64(42), attrs[0].Value.AsInt64())
}

func TestAttributeHelpers(t *testing.T) {
	h := NFSHandle([]byte{0xDE, 0xAD})
	assert.Equal(t, AttrNFSHandle, string(h.Key))
	assert.Equal(t, "dead", h.Value.AsString())

	assert.Equal(t, "share", NFSShare("share").Value.AsString())
	assert.Equal(t, "file.txt", NFSFilename("file.txt").Value.AsString())
	assert.Equal(t, "abc-123", SessionID("abc-123").Value.AsString())
}
