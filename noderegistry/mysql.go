package noderegistry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/Lzww0608/tuuid"
	"github.com/Lzww0608/tuuid/internal/log"
)

const createLeaseTable = `CREATE TABLE IF NOT EXISTS tuuid_node_lease (
	service    VARCHAR(128) NOT NULL PRIMARY KEY,
	next_lease BIGINT UNSIGNED NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`

// MySQLRegistry allocates leases from a per-service counter row. Leases are
// never returned; the 40-bit space outlasts any realistic restart rate.
type MySQLRegistry struct {
	db      *sql.DB
	service string
}

// OpenMySQL opens a connection pool for dsn.
func OpenMySQL(dsn, service string) (*MySQLRegistry, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("noderegistry: parse mysql dsn: %w", err)
	}
	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("noderegistry: mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	return NewMySQLRegistry(db, service), nil
}

// NewMySQLRegistry wraps an existing pool. The registry takes ownership of db.
func NewMySQLRegistry(db *sql.DB, service string) *MySQLRegistry {
	return &MySQLRegistry{db: db, service: service}
}

// EnsureSchema creates the lease table if it does not exist.
func (r *MySQLRegistry) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createLeaseTable); err != nil {
		return fmt.Errorf("noderegistry: create lease table: %w", err)
	}
	return nil
}

// Lease reserves the next counter value for the service in one transaction.
// It logs through the logger carried by ctx.
func (r *MySQLRegistry) Lease(ctx context.Context) (tuuid.NodeIdentifier, error) {
	logger := log.Ctx(ctx).With().Str("registry", "mysql").Str(log.FieldService, r.service).Logger()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("noderegistry: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx,
		"INSERT IGNORE INTO tuuid_node_lease (service, next_lease) VALUES (?, 0)", r.service); err != nil {
		return 0, fmt.Errorf("noderegistry: insert lease row: %w", err)
	}

	// The row lock taken here serialises concurrent leaseholders.
	if _, err = tx.ExecContext(ctx,
		"UPDATE tuuid_node_lease SET next_lease = next_lease + 1 WHERE service = ?", r.service); err != nil {
		return 0, fmt.Errorf("noderegistry: reserve lease: %w", err)
	}

	var lease uint64
	if err = tx.QueryRowContext(ctx,
		"SELECT next_lease FROM tuuid_node_lease WHERE service = ?", r.service).Scan(&lease); err != nil {
		return 0, fmt.Errorf("noderegistry: read lease: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("noderegistry: commit: %w", err)
	}

	node := NodeFromLease(lease)
	logger.Info().Uint64("lease", lease).Str("node", node.String()).Msg("leased node identifier")
	return node, nil
}

// Close closes the connection pool.
func (r *MySQLRegistry) Close() error {
	return r.db.Close()
}
