// Package tree is the client-side cache of resolved file handles: a
// forest of per-export root Inodes, each growing a tree of named
// children as LOOKUP/CREATE/MKDIR resolve them, so a repeated path
// traversal can reuse a handle instead of re-issuing LOOKUP for every
// component.
//
// One mutex-guarded map from export name to root Inode, children held in
// a per-Inode map keyed by leaf name. Tree has its own sync.RWMutex for
// the root map and each Inode carries one for its children; Tree/Inode
// locks are always acquired before transport.Session's, never the other
// way around. Between Inodes, a parent's lock may be held while one of its
// children's is taken (Invalidate does this), never the reverse.
package tree

import "sync"

// Inode is one node of the cached handle tree: a file handle plus its
// known children. The zero value is not usable; construct through
// Tree.AddRoot or (*Inode).SetChild.
type Inode struct {
	name   string
	handle []byte
	parent *Inode // nil for a root; never owning, the tree owns top-down

	mu       sync.RWMutex
	children map[string]*Inode
	stale    bool
}

// Name returns the directory-entry name this Inode was resolved under
// ("/" for a root Inode).
func (n *Inode) Name() string {
	return n.name
}

// Handle returns the cached NFSv3 file handle.
func (n *Inode) Handle() []byte {
	return n.handle
}

// Parent returns the Inode this one is cached under, or nil for a root.
// Both fields are set at construction and never change, so no lock is
// needed.
func (n *Inode) Parent() *Inode {
	return n.parent
}

// Stale reports whether Invalidate has been called on this Inode — its
// handle may no longer resolve on the server.
func (n *Inode) Stale() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stale
}

// Child returns the cached child named name, if any.
func (n *Inode) Child(name string) (*Inode, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	child, ok := n.children[name]
	return child, ok
}

// SetChild caches child under name, resolved handle in hand, creating
// the children map on first use. Overwrites any previous entry of the
// same name — a fresh LOOKUP/CREATE/MKDIR result always supersedes a
// stale one.
func (n *Inode) SetChild(name string, handle []byte) *Inode {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.children == nil {
		n.children = make(map[string]*Inode)
	}
	child := &Inode{name: name, handle: handle, parent: n}
	n.children[name] = child
	return child
}

// Invalidate marks the child named name stale and drops it from the
// cache, forcing the next lookup of that name to go back to the server.
func (n *Inode) Invalidate(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if child, ok := n.children[name]; ok {
		child.mu.Lock()
		child.stale = true
		child.mu.Unlock()
		delete(n.children, name)
	}
}

// Tree is the forest of per-export root Inodes this client has mounted.
// The zero value is not usable; construct with NewTree.
type Tree struct {
	mu    sync.RWMutex
	roots map[string]*Inode
}

// NewTree returns an empty Tree.
func NewTree() *Tree {
	return &Tree{roots: make(map[string]*Inode)}
}

// Root returns the cached root Inode for export, if one has been added.
func (t *Tree) Root(export string) (*Inode, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	root, ok := t.roots[export]
	return root, ok
}

// AddRoot caches the root Inode for export with the given MOUNT handle.
// Idempotent: a second AddRoot for an already-cached export returns the
// existing Inode unchanged rather than replacing it.
func (t *Tree) AddRoot(export string, handle []byte) *Inode {
	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.roots[export]; ok {
		return existing
	}
	root := &Inode{name: "/", handle: handle}
	t.roots[export] = root
	return root
}

// DropRoot removes export's cached root, e.g. after Unmount.
func (t *Tree) DropRoot(export string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.roots, export)
}
