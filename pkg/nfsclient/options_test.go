package nfsclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marmos91/nfs3client/internal/rpc"
	"github.com/marmos91/nfs3client/internal/transport"
)

func TestDefaultConfig(t *testing.T) {
	c := defaultConfig()
	assert.Equal(t, DefaultPortmapPort, c.PortmapPort)
	assert.Equal(t, 10*time.Second, c.DialTimeout)
	assert.Equal(t, 30*time.Second, c.CallTimeout)
	assert.Equal(t, transport.DefaultReceiveTimeout, c.ReceiveTimeout)
	assert.False(t, c.EnableMetrics)
	assert.True(t, c.EnableTracing)
	assert.Equal(t, rpc.AuthSys, c.AuthFlavor)
}

func TestOptionsMutateConfig(t *testing.T) {
	c := defaultConfig()

	opts := []Option{
		WithPortmapPort(2049),
		WithDialTimeout(2 * time.Second),
		WithCallTimeout(7 * time.Second),
		WithReceiveTimeout(3 * time.Second),
		WithMetrics(true),
		WithTracing(false),
		WithAuthFlavor(rpc.AuthNone),
	}
	for _, opt := range opts {
		opt(&c)
	}

	assert.Equal(t, 2049, c.PortmapPort)
	assert.Equal(t, 2*time.Second, c.DialTimeout)
	assert.Equal(t, 7*time.Second, c.CallTimeout)
	assert.Equal(t, 3*time.Second, c.ReceiveTimeout)
	assert.True(t, c.EnableMetrics)
	assert.False(t, c.EnableTracing)
	assert.Equal(t, rpc.AuthNone, c.AuthFlavor)
}

func TestSplitPath(t *testing.T) {
	cases := []struct {
		path string
		want []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{"a/b/c", []string{"a", "b", "c"}},
		{"/a/b", []string{"a", "b"}},
		{"a/b/", []string{"a", "b"}},
		{"//a//b//", []string{"a", "b"}},
	}
	for _, tc := range cases {
		got := splitPath(tc.path)
		assert.Equal(t, tc.want, got, "splitPath(%q)", tc.path)
	}
}
