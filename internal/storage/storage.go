package storage

import (
	"context"
	"errors"
	"time"

	"github.com/paqtrack/paqtrack-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// AgentStore captures agent persistence operations needed by handlers.
type AgentStore interface {
	CreateAgent(ctx context.Context, agent models.Agent) (models.Agent, error)
	ListAgents(ctx context.Context) ([]models.Agent, error)
	FindAgentByEmail(ctx context.Context, email string) (models.Agent, error)
}

// PackageStore captures package persistence operations. MarkDelivered is the
// only mutation of an existing package: a single conditional update that takes
// effect only while the row is still pending, so concurrent confirmations race
// to at most one winner.
type PackageStore interface {
	CreatePackage(ctx context.Context, pkg models.Package) (models.Package, error)
	GetPackage(ctx context.Context, id int64) (models.Package, error)
	ListPackagesByAgent(ctx context.Context, agentID int64) ([]models.Package, error)
	ListDelivered(ctx context.Context, agentID int64, from, to *time.Time) ([]models.Package, error)
	MarkDelivered(ctx context.Context, id int64, photoURL string, lat, lng float64, at time.Time) error
}

// AuditStore appends delivery audit records. Records are never read back,
// updated, or deleted by this service.
type AuditStore interface {
	AppendDeliveryAudit(ctx context.Context, rec models.DeliveryAudit) error
}
