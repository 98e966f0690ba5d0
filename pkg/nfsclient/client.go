package nfsclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/nfs3client/internal/logger"
	"github.com/marmos91/nfs3client/internal/mount"
	"github.com/marmos91/nfs3client/internal/nfsops"
	"github.com/marmos91/nfs3client/internal/portmap"
	"github.com/marmos91/nfs3client/internal/rpc"
	"github.com/marmos91/nfs3client/internal/telemetry"
	"github.com/marmos91/nfs3client/internal/transport"
	"github.com/marmos91/nfs3client/internal/tree"
)

// resolvedPort caches one program's port-mapper lookup for the lifetime
// of a Client, so a second Mount (or a second NFS op against an
// already-mounted export) skips the GETPORT round trip. Guarded by its
// own mutex rather than the session's, since resolving a miss issues an
// RPC that takes the session lock internally — this lock only ever
// serializes the "have we resolved this port yet" decision itself.
type resolvedPort struct {
	mu       sync.Mutex
	resolved bool
	port     uint32
}

// value returns the currently resolved port, or 0 if none has been
// resolved yet.
func (p *resolvedPort) value() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port
}

// Client is a connection to one NFS-capable server: the session used for
// every port-mapper/MOUNT/NFS exchange, the tree cache shared by every
// export Mount'ed against this server, and per-session diagnostics (a
// correlation ID attached to every trace span and to the log line Dial
// writes; other log lines carry the host, operation and export only).
type Client struct {
	host string
	id   string
	cfg  Config
	sess *transport.Session
	tree *tree.Tree
	mtr  *telemetry.SessionMetrics

	mountPort resolvedPort
	nfsPort   resolvedPort

	logCtx *logger.LogContext
}

// Dial connects to host's port-mapper port and returns a Client ready to
// Mount exports. It does not yet resolve the MOUNT or NFS port — those
// are resolved lazily, the first time a Mount or NFS operation actually
// needs them.
func Dial(ctx context.Context, host string, opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	cred, err := rpc.NewCredentialForFlavor(cfg.AuthFlavor)
	if err != nil {
		return nil, fmt.Errorf("nfsclient: dial %s: %w", host, err)
	}

	mtr := telemetry.NewSessionMetrics(cfg.EnableMetrics)

	sess := transport.NewSession(host, cfg.PortmapPort)
	sess.SetReceiveTimeout(cfg.ReceiveTimeout)
	sess.SetCredential(cred)
	if mtr != nil {
		sess.SetMetrics(mtr)
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := sess.Connect(dialCtx); err != nil {
		return nil, fmt.Errorf("nfsclient: dial %s: %w", host, err)
	}

	id := uuid.NewString()
	logCtx := logger.NewLogContext().WithHost(host)

	c := &Client{
		host:   host,
		id:     id,
		cfg:    cfg,
		sess:   sess,
		tree:   tree.NewTree(),
		mtr:    mtr,
		logCtx: logCtx,
	}
	logger.InfoCtx(logger.WithContext(ctx, logCtx), "nfsclient: dialed", "session_id", id)
	return c, nil
}

// ID returns this Client's correlation ID, attached to every trace span it
// produces and to its Dial log line — useful for a caller that holds several
// Clients open concurrently and wants to tell their diagnostics apart.
func (c *Client) ID() string {
	return c.id
}

// Close disconnects the underlying session. It does not UMNT any
// outstanding Mounts; call (*Mount).Close first for a clean server-side
// unmount, or accept that the server will eventually time out the entry
// on its own (MOUNT protocol has no lease, but well-behaved servers GC
// entries for clients that vanish).
func (c *Client) Close() error {
	return c.sess.Disconnect()
}

// Mount resolves the MOUNT program's port via the port-mapper (skipping
// the lookup if a prior Mount on this Client already resolved it),
// switches the session to that port, and issues MNT for export. The
// returned Mount owns the root Inode cached for this export in the
// Client's shared tree (idempotent: mounting the same export twice
// returns the same cached root).
func (c *Client) Mount(ctx context.Context, export string) (*Mount, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	logCtx := c.logCtx.WithOperation("MNT").WithExport(export)
	spanCtx, span := telemetry.StartSpanIf(ctx, c.cfg.EnableTracing, telemetry.SpanMountMnt,
		telemetry.NFSShare(export), telemetry.SessionID(c.id))
	defer span.End()

	if err := c.ensurePort(callCtx, &c.mountPort, rpc.ProgMount, mount.MountVersion); err != nil {
		telemetry.EndWithError(span, err)
		return nil, fmt.Errorf("nfsclient: resolve mount port: %w", err)
	}

	start := time.Now()
	result, err := mount.Mount(spanCtx, c.sess, export)
	c.mtr.ObserveCall("mount", "MNT", time.Since(start), err)
	if err != nil {
		telemetry.EndWithError(span, err)
		logger.ErrorCtx(logger.WithContext(ctx, logCtx), "nfsclient: MNT failed", "error", err)
		return nil, fmt.Errorf("nfsclient: mount %s: %w", export, err)
	}

	root := c.tree.AddRoot(export, result.RootHandle)
	logger.InfoCtx(logger.WithContext(ctx, logCtx), "nfsclient: mounted",
		"auth_flavors", result.AuthFlavors, "handle_len", len(result.RootHandle))

	return &Mount{
		client: c,
		export: export,
		root:   root,
	}, nil
}

// ensurePort resolves (once per Client) and switches the session to
// state's program/version port, reusing the cached port on every
// subsequent call regardless of which program last held the socket.
func (c *Client) ensurePort(ctx context.Context, state *resolvedPort, prog, vers uint32) error {
	state.mu.Lock()
	defer state.mu.Unlock()

	if !state.resolved {
		port, err := c.resolvePort(ctx, prog, vers)
		if err != nil {
			return err
		}
		state.port = port
		state.resolved = true
	}
	return c.sess.SwitchTo(ctx, int(state.port))
}

// resolvePort asks the port-mapper for (prog, vers)'s TCP port,
// switching the session back to the port-mapper port first.
func (c *Client) resolvePort(ctx context.Context, prog, vers uint32) (uint32, error) {
	if err := c.sess.SwitchTo(ctx, c.cfg.PortmapPort); err != nil {
		return 0, fmt.Errorf("switch to portmapper port %d: %w", c.cfg.PortmapPort, err)
	}

	spanCtx, span := telemetry.StartSpanIf(ctx, c.cfg.EnableTracing, telemetry.SpanPortmapGetPort, telemetry.SessionID(c.id))
	defer span.End()

	start := time.Now()
	port, err := portmap.GetPort(spanCtx, c.sess, prog, vers)
	c.mtr.ObserveCall("portmap", "GETPORT", time.Since(start), err)
	if err != nil {
		telemetry.EndWithError(span, err)
		return 0, err
	}
	return port, nil
}

// ensureNFSPort resolves and switches the session to the NFS program's
// port, serialized the same way ensurePort serializes MOUNT.
func (c *Client) ensureNFSPort(ctx context.Context) error {
	return c.ensurePort(ctx, &c.nfsPort, rpc.ProgNFS, nfsops.NFSVersion)
}
