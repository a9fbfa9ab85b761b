package noderegistry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/rs/zerolog"

	"github.com/Lzww0608/tuuid"
	"github.com/Lzww0608/tuuid/internal/log"
)

// ZKRootPath is the parent of every service's lease directory.
const ZKRootPath = "/tuuid/nodes"

// sequenceDigits is the width of the counter ZooKeeper appends to sequential nodes.
const sequenceDigits = 10

// leaseInfo is stored in each lease znode for operators.
type leaseInfo struct {
	Host       string `json:"host"`
	PID        int    `json:"pid"`
	CreateTime int64  `json:"create_time"`
}

// ZooKeeperRegistry leases node identifiers as ephemeral sequential znodes.
// A lease lives as long as the session that created it.
type ZooKeeperRegistry struct {
	conn    *zk.Conn
	service string
}

// ConnectZooKeeper opens a session to servers.
func ConnectZooKeeper(servers []string, service string, timeout time.Duration, logger zerolog.Logger) (*ZooKeeperRegistry, error) {
	if len(servers) == 0 {
		return nil, errors.New("noderegistry: no zookeeper servers configured")
	}
	// session events from the zk client go to logger
	zkLogger := logger.With().Str("registry", "zookeeper").Str(log.FieldService, service).Str("source", "zk").Logger()
	conn, _, err := zk.Connect(servers, timeout, zk.WithLogger(&zkLogger))
	if err != nil {
		return nil, fmt.Errorf("noderegistry: connect zookeeper: %w", err)
	}
	return &ZooKeeperRegistry{conn: conn, service: service}, nil
}

// ServicePath returns the directory holding the service's lease nodes.
func ServicePath(service string) string {
	return path.Join(ZKRootPath, service)
}

// Lease creates a protected ephemeral sequential node and uses its sequence
// number as the lease. It logs through the logger carried by ctx.
func (r *ZooKeeperRegistry) Lease(ctx context.Context) (tuuid.NodeIdentifier, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	logger := log.Ctx(ctx).With().Str("registry", "zookeeper").Str(log.FieldService, r.service).Logger()

	dir := ServicePath(r.service)
	if err := r.ensurePath(dir); err != nil {
		return 0, err
	}

	host, _ := os.Hostname()
	data, err := json.Marshal(leaseInfo{Host: host, PID: os.Getpid(), CreateTime: time.Now().UnixMilli()})
	if err != nil {
		return 0, err
	}

	created, err := r.conn.CreateProtectedEphemeralSequential(dir+"/lease-", data, zk.WorldACL(zk.PermAll))
	if err != nil {
		return 0, fmt.Errorf("noderegistry: create lease node: %w", err)
	}

	lease, err := leaseFromPath(created)
	if err != nil {
		return 0, err
	}
	node := NodeFromLease(lease)
	logger.Info().Str("znode", created).Uint64("lease", lease).Str("node", node.String()).Msg("leased node identifier")
	return node, nil
}

// ensurePath creates every missing component of p as a persistent node.
func (r *ZooKeeperRegistry) ensurePath(p string) error {
	cur := ""
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		cur += "/" + part
		exists, _, err := r.conn.Exists(cur)
		if err != nil {
			return fmt.Errorf("noderegistry: check %s: %w", cur, err)
		}
		if exists {
			continue
		}
		if _, err := r.conn.Create(cur, []byte{}, 0, zk.WorldACL(zk.PermAll)); err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("noderegistry: create %s: %w", cur, err)
		}
	}
	return nil
}

// Close ends the session, which removes the lease node.
func (r *ZooKeeperRegistry) Close() error {
	r.conn.Close()
	return nil
}

// leaseFromPath parses the sequence suffix ZooKeeper appended to a node name.
func leaseFromPath(p string) (uint64, error) {
	if len(p) < sequenceDigits {
		return 0, fmt.Errorf("noderegistry: %q has no sequence suffix", p)
	}
	n, err := strconv.ParseUint(p[len(p)-sequenceDigits:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("noderegistry: %q has no sequence suffix: %w", p, err)
	}
	return n, nil
}
