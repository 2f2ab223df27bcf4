package fetcher

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.31.255.255", true},
		{"172.32.0.1", false},
		{"192.168.0.10", true},
		{"169.254.169.254", true},
		{"0.0.0.0", true},
		{"::1", true},
		{"fd00::1", true},
		{"fe80::abcd", true},
		{"8.8.8.8", false},
		{"2606:4700:4700::1111", false},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.want, isPrivateIP(net.ParseIP(tt.ip)))
		})
	}
}

func TestValidateURL_LiteralIPs(t *testing.T) {
	ctx := context.Background()

	assert.ErrorIs(t, validateURL(ctx, net.DefaultResolver, "http://192.168.1.1/x", true), ErrPrivateIP)
	assert.NoError(t, validateURL(ctx, net.DefaultResolver, "http://192.168.1.1/x", false))
	assert.NoError(t, validateURL(ctx, net.DefaultResolver, "https://93.184.216.34/", true))
}

func TestValidateURL_Scheme(t *testing.T) {
	ctx := context.Background()
	assert.ErrorIs(t, validateURL(ctx, net.DefaultResolver, "gopher://example.com", false), ErrInvalidURL)
	assert.ErrorIs(t, validateURL(ctx, net.DefaultResolver, "://bad", false), ErrInvalidURL)
	assert.NoError(t, validateURL(ctx, net.DefaultResolver, "https://example.com/a", false))
}

func TestDialControl(t *testing.T) {
	assert.ErrorIs(t, dialControl("tcp", "127.0.0.1:443", nil), ErrPrivateIP)
	assert.ErrorIs(t, dialControl("tcp6", "[::1]:80", nil), ErrPrivateIP)
	assert.NoError(t, dialControl("tcp", "1.1.1.1:443", nil))
	assert.ErrorIs(t, dialControl("tcp", "no-port", nil), ErrInvalidURL)
}
