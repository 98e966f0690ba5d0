// Package telemetry wraps the OpenTelemetry tracer this client starts a
// span around for every port-mapper/MOUNT/NFS round trip.
//
// The package never constructs a TracerProvider itself: a library
// embedded in someone else's process asks otel.Tracer() for whatever
// provider the host has installed (or the no-op one otel installs by
// default) rather than owning an export pipeline of its own.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// instrumentationName identifies this library's spans in whatever
// backend the host process exports to.
const instrumentationName = "github.com/marmos91/nfs3client"

// Common attribute keys, the subset this client's three RPC programs
// actually produce.
const (
	AttrRPCXID       = "rpc.xid"
	AttrRPCProgram   = "rpc.program"
	AttrRPCVersion   = "rpc.version"
	AttrRPCProc      = "rpc.procedure"
	AttrNFSHandle    = "nfs.handle"
	AttrNFSShare     = "nfs.share"
	AttrNFSFilename  = "nfs.filename"
	AttrNFSOffset    = "nfs.offset"
	AttrNFSCount     = "nfs.count"
	AttrNFSStatus    = "nfs.status"
	AttrSessionHost  = "session.host"
	AttrSessionID    = "session.id"
)

// Span names, one per RPC program this client speaks.
const (
	SpanPortmapGetPort = "portmap.GETPORT"
	SpanMountMnt       = "mount.MNT"
	SpanMountUmnt      = "mount.UMNT"
	SpanNFSCall        = "nfs.call" // procedure name attached as AttrRPCProc
)

func tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// noopTracer backs StartSpanIf's disabled path, so a Client configured
// with tracing off records nothing even when the host process has a real
// TracerProvider installed.
var noopTracer = noop.NewTracerProvider().Tracer(instrumentationName)

// StartSpanIf is StartSpan gated on enabled: when enabled is false the
// returned span is a no-op regardless of the installed TracerProvider.
// Callers end it (and call EndWithError on it) exactly as they would a
// real span.
func StartSpanIf(ctx context.Context, enabled bool, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if !enabled {
		return noopTracer.Start(ctx, name)
	}
	return StartSpan(ctx, name, attrs...)
}

// StartSpan starts a span named name, recording whatever TracerProvider
// the embedding process has installed via otel.SetTracerProvider (a
// no-op tracer if none was installed, matching otel's own default).
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	opts := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindClient)}
	if len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return tracer().Start(ctx, name, opts...)
}

// EndWithError ends span, recording err (if non-nil) as a span error and
// setting the span status accordingly. Call via defer right after
// StartSpan.
func EndWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// RPCAttrs returns the common attribute set attached to every RPC-call
// span: transaction ID, program, version, and procedure number.
func RPCAttrs(xid, program, version, proc uint32) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(AttrRPCXID, int64(xid)),
		attribute.Int64(AttrRPCProgram, int64(program)),
		attribute.Int64(AttrRPCVersion, int64(version)),
		attribute.Int64(AttrRPCProc, int64(proc)),
	}
}

// NFSHandle returns an attribute carrying a file handle's hex encoding.
func NFSHandle(handle []byte) attribute.KeyValue {
	return attribute.String(AttrNFSHandle, fmt.Sprintf("%x", handle))
}

// NFSShare returns an attribute for the export/share path.
func NFSShare(share string) attribute.KeyValue {
	return attribute.String(AttrNFSShare, share)
}

// NFSFilename returns an attribute for a directory-entry name.
func NFSFilename(name string) attribute.KeyValue {
	return attribute.String(AttrNFSFilename, name)
}

// SessionID returns an attribute carrying a session's correlation ID
// (pkg/nfsclient attaches this to its spans from Client.ID()).
func SessionID(id string) attribute.KeyValue {
	return attribute.String(AttrSessionID, id)
}
