package noderegistry

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lzww0608/tuuid"
)

func TestNodeFromLease(t *testing.T) {
	tests := []struct {
		lease uint64
		want  tuuid.NodeIdentifier
	}{
		{0, tuuid.MulticastBit},
		{1, tuuid.MulticastBit | 1},
		{leaseMask, tuuid.MulticastBit | leaseMask},
		// bits above the lease width are dropped
		{1 << LeaseBits, tuuid.MulticastBit},
		{1<<LeaseBits | 7, tuuid.MulticastBit | 7},
	}
	for _, tt := range tests {
		got := NodeFromLease(tt.lease)
		assert.Equal(t, tt.want, got, "lease %d", tt.lease)
		assert.True(t, got.IsMulticast())
		assert.Less(t, uint64(got), uint64(1)<<48)
	}
}

func TestNodeFromLeaseDistinct(t *testing.T) {
	seen := make(map[tuuid.NodeIdentifier]bool)
	for i := uint64(0); i < 4096; i++ {
		n := NodeFromLease(i)
		require.False(t, seen[n], "duplicate node for lease %d", i)
		seen[n] = true
	}
}

func TestLeaseFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    uint64
		wantErr bool
	}{
		{"/tuuid/nodes/orders/_c_2f1d9a7e-lease-0000000000", 0, false},
		{"/tuuid/nodes/orders/_c_2f1d9a7e-lease-0000000042", 42, false},
		{"/tuuid/nodes/orders/_c_2f1d9a7e-lease-2147483647", 2147483647, false},
		{"short", 0, true},
		{"/tuuid/nodes/orders/lease-abcdefghij", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := leaseFromPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServicePath(t *testing.T) {
	assert.Equal(t, "/tuuid/nodes/orders", ServicePath("orders"))
}

func TestOpenWithoutKind(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	assert.True(t, errors.Is(err, ErrNoRegistry))
}

func TestOpenUnknownKind(t *testing.T) {
	_, err := Open(context.Background(), Config{Kind: "etcd"})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoRegistry))
}

func TestOpenMySQLRejectsBadDSN(t *testing.T) {
	_, err := OpenMySQL("not a dsn", "tuuid")
	assert.Error(t, err)
}

func TestConnectZooKeeperRequiresServers(t *testing.T) {
	_, err := ConnectZooKeeper(nil, "tuuid", 0, zerolog.Nop())
	assert.Error(t, err)
}
