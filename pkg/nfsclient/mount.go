package nfsclient

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/marmos91/nfs3client/internal/logger"
	"github.com/marmos91/nfs3client/internal/mount"
	"github.com/marmos91/nfs3client/internal/nfsops"
	"github.com/marmos91/nfs3client/internal/telemetry"
	"github.com/marmos91/nfs3client/internal/tree"
)

// Mount is one mounted export: the root Inode cached for it in the
// owning Client's tree, plus every NFSv3 operation rooted at that tree.
// Obtained from (*Client).Mount; released with Close.
type Mount struct {
	client *Client
	export string
	root   *tree.Inode
}

// Export returns the server-side export path this Mount was obtained
// for.
func (m *Mount) Export() string {
	return m.export
}

// Root returns the cached root Inode, its handle populated from the MNT
// reply.
func (m *Mount) Root() *tree.Inode {
	return m.root
}

// Close sends UMNT for this export and drops its subtree from the
// Client's tree cache.
func (m *Mount) Close(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, m.client.cfg.CallTimeout)
	defer cancel()

	if err := m.client.sess.SwitchTo(callCtx, int(m.client.mountPort.value())); err != nil {
		return fmt.Errorf("nfsclient: switch to mount port for umount: %w", err)
	}

	spanCtx, span := telemetry.StartSpanIf(ctx, m.client.cfg.EnableTracing, telemetry.SpanMountUmnt,
		telemetry.NFSShare(m.export), telemetry.SessionID(m.client.id))
	defer span.End()

	start := time.Now()
	err := mount.Unmount(spanCtx, m.client.sess, m.export)
	m.client.mtr.ObserveCall("mount", "UMNT", time.Since(start), err)
	if err != nil {
		telemetry.EndWithError(span, err)
		return fmt.Errorf("nfsclient: unmount %s: %w", m.export, err)
	}

	m.client.tree.DropRoot(m.export)
	return nil
}

// resolveChild returns the cached child Inode for name under parent,
// issuing LOOKUP on a cache miss and publishing the result under the
// tree's lock: a second call for the same name reuses the cached handle
// without a second RPC.
func (m *Mount) resolveChild(ctx context.Context, parent *tree.Inode, name string) (*tree.Inode, error) {
	if child, ok := parent.Child(name); ok && !child.Stale() {
		return child, nil
	}

	res, err := m.Lookup(ctx, parent, name)
	if err != nil {
		return nil, err
	}
	return parent.SetChild(name, res.Handle), nil
}

// Resolve walks a slash-separated path from the Mount's root, issuing
// LOOKUP for each component not already cached, and returns the leaf
// Inode. An empty path returns the root itself.
func (m *Mount) Resolve(ctx context.Context, path string) (*tree.Inode, error) {
	current := m.root
	for _, name := range splitPath(path) {
		next, err := m.resolveChild(ctx, current, name)
		if err != nil {
			return nil, fmt.Errorf("nfsclient: resolve %q: %w", path, err)
		}
		current = next
	}
	return current, nil
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				parts = append(parts, path[start:i])
			}
			start = i + 1
		}
	}
	return parts
}

// --- NFS operations, each a thin span/metrics/logging wrapper around
// internal/nfsops, rooted at this Mount's session and export. ---

// Lookup issues LOOKUP for name under dir. On NFS3ERR_STALE the cached
// entry for name under dir is dropped, so the next Lookup reissues the
// RPC.
func (m *Mount) Lookup(ctx context.Context, dir *tree.Inode, name string) (*nfsops.LookupResult, error) {
	return withOp(ctx, m, "LOOKUP", name, dir, func(ctx context.Context) (*nfsops.LookupResult, error) {
		return nfsops.Lookup(ctx, m.client.sess, dir.Handle(), name)
	})
}

// Getattr issues GETATTR for node's handle.
func (m *Mount) Getattr(ctx context.Context, node *tree.Inode) (*nfsops.FileAttr, error) {
	return withOp(ctx, m, "GETATTR", node.Name(), node.Parent(), func(ctx context.Context) (*nfsops.FileAttr, error) {
		return nfsops.Getattr(ctx, m.client.sess, node.Handle())
	})
}

// Read issues READ for node's handle at offset, for up to count bytes.
func (m *Mount) Read(ctx context.Context, node *tree.Inode, offset uint64, count uint32) (*nfsops.ReadResult, error) {
	return withOp(ctx, m, "READ", node.Name(), node.Parent(), func(ctx context.Context) (*nfsops.ReadResult, error) {
		return nfsops.Read(ctx, m.client.sess, node.Handle(), offset, count)
	})
}

// Write issues WRITE for node's handle at offset with the given
// stability mode.
func (m *Mount) Write(ctx context.Context, node *tree.Inode, offset uint64, data []byte, stable uint32) (*nfsops.WriteResult, error) {
	return withOp(ctx, m, "WRITE", node.Name(), node.Parent(), func(ctx context.Context) (*nfsops.WriteResult, error) {
		return nfsops.Write(ctx, m.client.sess, node.Handle(), offset, data, stable)
	})
}

// Create issues CREATE for name under dir and caches the new handle as
// dir's child.
func (m *Mount) Create(ctx context.Context, dir *tree.Inode, name string) (*nfsops.CreateResult, error) {
	res, err := withOp(ctx, m, "CREATE", name, dir, func(ctx context.Context) (*nfsops.CreateResult, error) {
		return nfsops.Create(ctx, m.client.sess, dir.Handle(), name)
	})
	if err != nil {
		return nil, err
	}
	dir.SetChild(name, res.Handle)
	return res, nil
}

// Mkdir issues MKDIR for name under dir and caches the new handle as
// dir's child.
func (m *Mount) Mkdir(ctx context.Context, dir *tree.Inode, name string) (*nfsops.CreateResult, error) {
	res, err := withOp(ctx, m, "MKDIR", name, dir, func(ctx context.Context) (*nfsops.CreateResult, error) {
		return nfsops.Mkdir(ctx, m.client.sess, dir.Handle(), name)
	})
	if err != nil {
		return nil, err
	}
	dir.SetChild(name, res.Handle)
	return res, nil
}

// Remove issues REMOVE for name under dir and invalidates any cached
// child entry.
func (m *Mount) Remove(ctx context.Context, dir *tree.Inode, name string) (*nfsops.Wcc, error) {
	wcc, err := withOp(ctx, m, "REMOVE", name, dir, func(ctx context.Context) (*nfsops.Wcc, error) {
		return nfsops.Remove(ctx, m.client.sess, dir.Handle(), name)
	})
	dir.Invalidate(name)
	return wcc, err
}

// Rmdir issues RMDIR for name under dir and invalidates any cached child
// entry.
func (m *Mount) Rmdir(ctx context.Context, dir *tree.Inode, name string) (*nfsops.Wcc, error) {
	wcc, err := withOp(ctx, m, "RMDIR", name, dir, func(ctx context.Context) (*nfsops.Wcc, error) {
		return nfsops.Rmdir(ctx, m.client.sess, dir.Handle(), name)
	})
	dir.Invalidate(name)
	return wcc, err
}

// Readdir issues READDIR for dir's handle starting at cookie/cookieVerf.
func (m *Mount) Readdir(ctx context.Context, dir *tree.Inode, cookie uint64, cookieVerf [8]byte) (*nfsops.ReaddirResult, error) {
	return withOp(ctx, m, "READDIR", dir.Name(), dir.Parent(), func(ctx context.Context) (*nfsops.ReaddirResult, error) {
		return nfsops.Readdir(ctx, m.client.sess, dir.Handle(), cookie, cookieVerf)
	})
}

// withOp centralizes the span/metrics/logging/port-switch/timeout/
// stale-handle boilerplate every NFS operation method above needs,
// parameterized over the operation's own result type.
//
// dir and name identify the cache entry backing the handle the operation
// used: (dir, name) for directory-plus-name operations, (node's parent,
// node's name) for operations on a node's own handle. When the call
// returns NFS3ERR_STALE that entry is dropped, so the next resolution of
// the name goes back to the server; dir is nil for a root node, which
// has no parent entry to drop.
func withOp[T any](ctx context.Context, m *Mount, op, name string, dir *tree.Inode, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	callCtx, cancel := context.WithTimeout(ctx, m.client.cfg.CallTimeout)
	defer cancel()

	if err := m.client.ensureNFSPort(callCtx); err != nil {
		return zero, fmt.Errorf("nfsclient: %s: %w", op, err)
	}

	logCtx := m.client.logCtx.WithOperation(op).WithExport(m.export)
	attrs := []attribute.KeyValue{telemetry.NFSShare(m.export), telemetry.SessionID(m.client.id)}
	if name != "" {
		attrs = append(attrs, telemetry.NFSFilename(name))
	}
	spanCtx, span := telemetry.StartSpanIf(ctx, m.client.cfg.EnableTracing, telemetry.SpanNFSCall, attrs...)
	defer span.End()

	start := time.Now()
	result, err := fn(spanCtx)
	m.client.mtr.ObserveCall("nfs", op, time.Since(start), err)

	if err != nil {
		if dir != nil && name != "" && nfsops.IsStale(err) {
			dir.Invalidate(name)
		}
		telemetry.EndWithError(span, err)
		logger.ErrorCtx(logger.WithContext(ctx, logCtx), "nfsclient: op failed", "error", err)
		return zero, err
	}
	logger.DebugCtx(logger.WithContext(ctx, logCtx), "nfsclient: op ok")
	return result, nil
}
