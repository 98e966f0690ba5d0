package tree

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRootIsIdempotent(t *testing.T) {
	tr := NewTree()
	root1 := tr.AddRoot("/export/data", []byte{1, 2, 3})
	root2 := tr.AddRoot("/export/data", []byte{9, 9, 9})

	assert.Same(t, root1, root2)
	assert.Equal(t, []byte{1, 2, 3}, root2.Handle())
}

func TestRootLookup(t *testing.T) {
	tr := NewTree()
	_, ok := tr.Root("/missing")
	assert.False(t, ok)

	tr.AddRoot("/export/data", []byte{1})
	root, ok := tr.Root("/export/data")
	require.True(t, ok)
	assert.Equal(t, "/", root.Name())
}

func TestDropRoot(t *testing.T) {
	tr := NewTree()
	tr.AddRoot("/export/data", []byte{1})
	tr.DropRoot("/export/data")
	_, ok := tr.Root("/export/data")
	assert.False(t, ok)
}

func TestChildCaching(t *testing.T) {
	tr := NewTree()
	root := tr.AddRoot("/export/data", []byte{1})

	_, ok := root.Child("file.txt")
	assert.False(t, ok)

	child := root.SetChild("file.txt", []byte{2, 2})
	got, ok := root.Child("file.txt")
	require.True(t, ok)
	assert.Same(t, child, got)
	assert.Equal(t, []byte{2, 2}, got.Handle())
}

func TestParentPointer(t *testing.T) {
	tr := NewTree()
	root := tr.AddRoot("/export/data", []byte{1})
	child := root.SetChild("file.txt", []byte{2})

	assert.Nil(t, root.Parent())
	assert.Same(t, root, child.Parent())
}

func TestSetChildOverwritesPrevious(t *testing.T) {
	tr := NewTree()
	root := tr.AddRoot("/export/data", []byte{1})

	root.SetChild("file.txt", []byte{1})
	second := root.SetChild("file.txt", []byte{2})

	got, ok := root.Child("file.txt")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, []byte{2}, got.Handle())
}

// A stale handle must be both removed from the parent's cache and
// observably marked stale on the Inode itself, so a caller still holding
// a reference to it knows not to reuse it.
func TestInvalidateDropsChildAndMarksStale(t *testing.T) {
	tr := NewTree()
	root := tr.AddRoot("/export/data", []byte{1})
	child := root.SetChild("file.txt", []byte{2})

	root.Invalidate("file.txt")

	_, ok := root.Child("file.txt")
	assert.False(t, ok)
	assert.True(t, child.Stale())
}

func TestInvalidateUnknownNameIsNoOp(t *testing.T) {
	tr := NewTree()
	root := tr.AddRoot("/export/data", []byte{1})
	root.Invalidate("never-existed")
}

// TestConcurrentChildAccess exercises the Inode-local RWMutex under
// concurrent readers and writers targeting distinct names — the
// concurrency model's Tree/Inode locking must not race or deadlock.
func TestConcurrentChildAccess(t *testing.T) {
	tr := NewTree()
	root := tr.AddRoot("/export/data", []byte{1})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		name := string(rune('a' + i%26))
		go func(name string) {
			defer wg.Done()
			root.SetChild(name, []byte{byte(len(name))})
		}(name)
		go func(name string) {
			defer wg.Done()
			_, _ = root.Child(name)
		}(name)
	}
	wg.Wait()
}
