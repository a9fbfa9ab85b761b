// Package noderegistry leases node identifiers from a shared coordinator so
// that processes without a usable hardware address still get distinct node
// fields. A lease becomes a multicast NodeIdentifier and is handed to a
// generator through tuuid.WithNodeIdentifier.
package noderegistry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Lzww0608/tuuid"
)

// LeaseBits is the width of the lease counter placed in a node identifier.
const LeaseBits = 40

const leaseMask = 1<<LeaseBits - 1

// ErrNoRegistry is returned by Open when no registry kind is configured.
var ErrNoRegistry = errors.New("noderegistry: no registry configured")

// Registry hands out node identifiers that are unique among live leaseholders.
type Registry interface {
	Lease(ctx context.Context) (tuuid.NodeIdentifier, error)
	Close() error
}

// NodeFromLease maps a lease number onto a node identifier with the
// multicast bit set, so leased values never collide with hardware addresses.
func NodeFromLease(lease uint64) tuuid.NodeIdentifier {
	return tuuid.MulticastBit | tuuid.NodeIdentifier(lease&leaseMask)
}

// Config selects and configures a registry backend.
type Config struct {
	Kind      string
	DSN       string
	ZKServers []string
	Service   string
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// Open connects the backend named by cfg.Kind: "mysql" or "zookeeper".
func Open(ctx context.Context, cfg Config) (Registry, error) {
	if cfg.Service == "" {
		cfg.Service = "tuuid"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "":
		return nil, ErrNoRegistry
	case "mysql":
		r, err := OpenMySQL(cfg.DSN, cfg.Service)
		if err != nil {
			return nil, err
		}
		if err := r.EnsureSchema(ctx); err != nil {
			r.Close()
			return nil, err
		}
		return r, nil
	case "zookeeper", "zk":
		return ConnectZooKeeper(cfg.ZKServers, cfg.Service, cfg.Timeout, cfg.Logger)
	default:
		return nil, fmt.Errorf("noderegistry: unknown registry kind %q", cfg.Kind)
	}
}
