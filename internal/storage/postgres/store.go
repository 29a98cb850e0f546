package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paqtrack/paqtrack-be/internal/models"
	"github.com/paqtrack/paqtrack-be/internal/storage"
)

// Ensure Store satisfies the storage interfaces at compile time.
var (
	_ storage.AgentStore   = (*Store)(nil)
	_ storage.PackageStore = (*Store)(nil)
	_ storage.AuditStore   = (*Store)(nil)
)

// Store provides Postgres-backed persistence for agents, packages, and the
// delivery audit trail.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new Store and runs migrations.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS packages (
			id BIGSERIAL PRIMARY KEY,
			description TEXT NOT NULL,
			address TEXT NOT NULL,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			status TEXT NOT NULL DEFAULT 'pending',
			agent_id BIGINT REFERENCES agents(id),
			photo_url TEXT,
			delivered_lat DOUBLE PRECISION,
			delivered_lng DOUBLE PRECISION,
			delivered_at TIMESTAMPTZ
		);`,
		`CREATE INDEX IF NOT EXISTS packages_agent_idx ON packages (agent_id);`,
		`CREATE INDEX IF NOT EXISTS packages_agent_status_idx ON packages (agent_id, status);`,
		`CREATE TABLE IF NOT EXISTS delivery_audit (
			id BIGSERIAL PRIMARY KEY,
			package_id BIGINT NOT NULL,
			agent_id BIGINT NOT NULL,
			lat DOUBLE PRECISION NOT NULL,
			lng DOUBLE PRECISION NOT NULL,
			delivered_at TIMESTAMPTZ NOT NULL,
			client_ip TEXT,
			user_agent TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS delivery_audit_package_idx ON delivery_audit (package_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// CreateAgent inserts a new agent row.
func (s *Store) CreateAgent(ctx context.Context, agent models.Agent) (models.Agent, error) {
	const query = `
		INSERT INTO agents (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, name, email, password_hash, created_at;
		`
	row := s.pool.QueryRow(ctx, query, agent.Name, agent.Email, agent.PasswordHash)
	created, err := scanAgent(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.Agent{}, storage.ErrAlreadyExists
		}
		return models.Agent{}, err
	}
	return created, nil
}

// ListAgents returns all agents.
func (s *Store) ListAgents(ctx context.Context) ([]models.Agent, error) {
	const query = `
	SELECT id, name, email, password_hash, created_at
	FROM agents
	ORDER BY id;
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []models.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("list agents: %w", err)
		}
		agents = append(agents, agent)
	}
	return agents, rows.Err()
}

// FindAgentByEmail fetches an agent by email address.
func (s *Store) FindAgentByEmail(ctx context.Context, email string) (models.Agent, error) {
	const query = `
	SELECT id, name, email, password_hash, created_at
	FROM agents
	WHERE email = $1;
	`
	row := s.pool.QueryRow(ctx, query, email)
	return scanAgent(row)
}

const packageColumns = `id, description, address, latitude, longitude, status,
	agent_id, photo_url, delivered_lat, delivered_lng, delivered_at`

// CreatePackage inserts a new pending package assigned to an agent.
func (s *Store) CreatePackage(ctx context.Context, pkg models.Package) (models.Package, error) {
	const query = `
		INSERT INTO packages (description, address, latitude, longitude, agent_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + packageColumns + `;
		`
	row := s.pool.QueryRow(ctx, query, pkg.Description, pkg.Address, pkg.Latitude, pkg.Longitude, pkg.AgentID)
	return scanPackage(row)
}

// GetPackage fetches a package by id.
func (s *Store) GetPackage(ctx context.Context, id int64) (models.Package, error) {
	const query = `SELECT ` + packageColumns + ` FROM packages WHERE id = $1;`
	row := s.pool.QueryRow(ctx, query, id)
	return scanPackage(row)
}

// ListPackagesByAgent returns all packages assigned to the agent.
func (s *Store) ListPackagesByAgent(ctx context.Context, agentID int64) ([]models.Package, error) {
	const query = `SELECT ` + packageColumns + ` FROM packages WHERE agent_id = $1 ORDER BY id;`
	rows, err := s.pool.Query(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()
	return collectPackages(rows)
}

// ListDelivered returns the agent's delivered packages, newest first,
// optionally bounded by delivery time.
func (s *Store) ListDelivered(ctx context.Context, agentID int64, from, to *time.Time) ([]models.Package, error) {
	query := `SELECT ` + packageColumns + ` FROM packages WHERE agent_id = $1 AND status = 'delivered'`
	args := []any{agentID}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND delivered_at >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND delivered_at < $%d", len(args))
	}
	query += " ORDER BY delivered_at DESC;"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list delivered: %w", err)
	}
	defer rows.Close()
	return collectPackages(rows)
}

// MarkDelivered performs the delivery transition as one conditional write: the
// update only takes effect while the row still exists and is still pending.
// Zero affected rows (deleted or already delivered) surface as ErrNotFound, so
// the losing side of a concurrent confirmation never overwrites the winner.
func (s *Store) MarkDelivered(ctx context.Context, id int64, photoURL string, lat, lng float64, at time.Time) error {
	const query = `
		UPDATE packages
		SET status = 'delivered',
			photo_url = $2,
			delivered_lat = $3,
			delivered_lng = $4,
			delivered_at = $5
		WHERE id = $1 AND status = 'pending';
		`
	tag, err := s.pool.Exec(ctx, query, id, photoURL, lat, lng, at)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AppendDeliveryAudit inserts one audit row.
func (s *Store) AppendDeliveryAudit(ctx context.Context, rec models.DeliveryAudit) error {
	const query = `
		INSERT INTO delivery_audit (package_id, agent_id, lat, lng, delivered_at, client_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
		`
	if _, err := s.pool.Exec(ctx, query, rec.PackageID, rec.AgentID, rec.Lat, rec.Lng, rec.DeliveredAt, rec.ClientIP, rec.UserAgent); err != nil {
		return fmt.Errorf("append delivery audit: %w", err)
	}
	return nil
}

func scanAgent(row pgx.Row) (models.Agent, error) {
	var agent models.Agent
	if err := row.Scan(&agent.ID, &agent.Name, &agent.Email, &agent.PasswordHash, &agent.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Agent{}, storage.ErrNotFound
		}
		return models.Agent{}, err
	}
	return agent, nil
}

func scanPackage(row pgx.Row) (models.Package, error) {
	var pkg models.Package
	err := row.Scan(&pkg.ID, &pkg.Description, &pkg.Address, &pkg.Latitude, &pkg.Longitude,
		&pkg.Status, &pkg.AgentID, &pkg.PhotoURL, &pkg.DeliveredLat, &pkg.DeliveredLng, &pkg.DeliveredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Package{}, storage.ErrNotFound
		}
		return models.Package{}, err
	}
	return pkg, nil
}

func collectPackages(rows pgx.Rows) ([]models.Package, error) {
	var pkgs []models.Package
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
	return pkgs, rows.Err()
}
