package logger

import "context"

// Log field keys, shared between appendContextFields and any caller that
// wants to match them up in assertions.
const (
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
	KeyOperation = "op"
	KeyExport    = "export"
	KeyHost      = "host"
	KeyXID       = "xid"
)

type logContextKey struct{}

// LogContext carries the fields this client attaches to every log line
// for one RPC call: which operation, against which export/host, under
// which XID, and (once internal/telemetry starts a span) which trace.
// Operation is the NFS/MOUNT/portmap procedure name, Export and Host
// identify the target, XID is the RPC transaction ID assigned by
// internal/rpc.
type LogContext struct {
	TraceID   string
	SpanID    string
	Operation string
	Export    string
	Host      string
	XID       uint32
}

// NewLogContext returns an empty LogContext.
func NewLogContext() *LogContext {
	return &LogContext{}
}

// Clone returns a shallow copy, so a caller can derive a per-call context
// from a shared per-session one without mutating the original.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return NewLogContext()
	}
	clone := *lc
	return &clone
}

// WithOperation returns a clone with Operation set.
func (lc *LogContext) WithOperation(op string) *LogContext {
	clone := lc.Clone()
	clone.Operation = op
	return clone
}

// WithExport returns a clone with Export set.
func (lc *LogContext) WithExport(export string) *LogContext {
	clone := lc.Clone()
	clone.Export = export
	return clone
}

// WithHost returns a clone with Host set.
func (lc *LogContext) WithHost(host string) *LogContext {
	clone := lc.Clone()
	clone.Host = host
	return clone
}

// WithXID returns a clone with XID set.
func (lc *LogContext) WithXID(xid uint32) *LogContext {
	clone := lc.Clone()
	clone.XID = xid
	return clone
}

// WithTrace returns a clone with TraceID/SpanID set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	clone.TraceID = traceID
	clone.SpanID = spanID
	return clone
}

// WithContext attaches lc to ctx, retrievable with FromContext.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey{}, lc)
}

// FromContext returns the LogContext attached to ctx, or nil if none was
// attached.
func FromContext(ctx context.Context) *LogContext {
	lc, _ := ctx.Value(logContextKey{}).(*LogContext)
	return lc
}
