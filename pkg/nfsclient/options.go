// Package nfsclient is the public front door of this library: dial a
// server, mount an export, and drive NFSv3 operations against the
// returned Mount. It wraps internal/transport, internal/portmap,
// internal/mount, internal/nfsops, and internal/tree behind a shape a
// consumer never has to know those packages exist.
package nfsclient

import (
	"time"

	"github.com/marmos91/nfs3client/internal/rpc"
	"github.com/marmos91/nfs3client/internal/transport"
)

// DefaultPortmapPort is the well-known port-mapper TCP port (RFC 1833).
const DefaultPortmapPort = 111

// Config collects the options a Dial call can be tuned with. Dial starts
// from defaultConfig(), a usable configuration against a standard NFS
// server on the default port-mapper port, and applies the caller's
// options on top.
type Config struct {
	PortmapPort    int
	DialTimeout    time.Duration
	CallTimeout    time.Duration
	ReceiveTimeout time.Duration
	EnableMetrics  bool
	EnableTracing  bool
	AuthFlavor     uint32
}

// Option mutates a Config during Dial.
type Option func(*Config)

// defaultConfig returns the Config Dial starts from before applying
// caller options.
func defaultConfig() Config {
	return Config{
		PortmapPort:    DefaultPortmapPort,
		DialTimeout:    10 * time.Second,
		CallTimeout:    30 * time.Second,
		ReceiveTimeout: transport.DefaultReceiveTimeout,
		EnableMetrics:  false,
		EnableTracing:  true,
		AuthFlavor:     rpc.AuthSys,
	}
}

// WithAuthFlavor overrides the RPC auth flavor this Client announces on
// every MOUNT/NFS call (default rpc.AuthSys). rpc.AuthNone is also
// accepted, useful for exercising a server's auth requirements. Any
// other flavor makes Dial fail fast with
// rpc.ErrAuthNotSupported rather than waiting for the server to reject
// it over the wire — AUTH_SHORT, AUTH_DH, and RPCSEC_GSS are recognized
// by this client but not implemented.
func WithAuthFlavor(flavor uint32) Option {
	return func(c *Config) { c.AuthFlavor = flavor }
}

// WithPortmapPort overrides the port-mapper port Dial connects to first
// (default 111; a test harness often runs one on an ephemeral port).
func WithPortmapPort(port int) Option {
	return func(c *Config) { c.PortmapPort = port }
}

// WithDialTimeout bounds how long the initial TCP connect to the
// port-mapper port may take.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Config) { c.DialTimeout = d }
}

// WithCallTimeout bounds the port-mapper lookup and the port switch that
// precede each MOUNT or NFS call issued through the resulting Client. The
// MNT, UMNT and NFS exchanges themselves run under the caller's ctx and
// the socket receive timeout, not under this bound.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Config) { c.CallTimeout = d }
}

// WithReceiveTimeout overrides the SO_RCVTIMEO applied to the session
// socket (default: 5 seconds).
func WithReceiveTimeout(d time.Duration) Option {
	return func(c *Config) { c.ReceiveTimeout = d }
}

// WithMetrics enables the Prometheus counters/histograms in
// internal/telemetry for every RPC call this Client issues.
func WithMetrics(enabled bool) Option {
	return func(c *Config) { c.EnableMetrics = enabled }
}

// WithTracing enables OpenTelemetry spans around every RPC call. Tracing
// is a no-op (but still attribute-compatible) without a TracerProvider
// installed by the host process, so this defaults to true.
func WithTracing(enabled bool) Option {
	return func(c *Config) { c.EnableTracing = enabled }
}
