// Package delivery implements the delivery-confirmation workflow: the one
// place a package may move from pending to delivered.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paqtrack/paqtrack-be/internal/models"
	"github.com/paqtrack/paqtrack-be/internal/photo"
	"github.com/paqtrack/paqtrack-be/internal/storage"
)

// ErrForbidden indicates the authenticated agent does not own the package.
var ErrForbidden = errors.New("agent does not own this package")

// RequestMeta carries provenance captured from the confirming request for the
// audit trail.
type RequestMeta struct {
	ClientIP  string
	UserAgent string
}

// Service orchestrates package repository, photo store, and audit log for
// delivery confirmation.
type Service struct {
	packages storage.PackageStore
	photos   photo.Store
	audits   storage.AuditStore
	logger   *slog.Logger
}

// NewService constructs the workflow service.
func NewService(packages storage.PackageStore, photos photo.Store, audits storage.AuditStore, logger *slog.Logger) *Service {
	return &Service{packages: packages, photos: photos, audits: audits, logger: logger}
}

// Confirm executes one delivery confirmation for the authenticated agent.
//
// The ownership check runs before any write, so a non-owner causes no photo,
// no status change, and no audit row. The photo is persisted before the
// database update so a delivered row never references a missing photo; if the
// photo write fails the package stays pending and the call is safe to retry.
// The status transition itself is a conditional update that only takes effect
// while the row is still pending, so of two concurrent confirmations exactly
// one wins and the other observes storage.ErrNotFound.
//
// The audit append is best-effort: once the transition has committed, an audit
// failure is logged and the delivery still reported as successful.
func (s *Service) Confirm(ctx context.Context, packageID, agentID int64, lat, lng float64, photoBytes []byte, meta RequestMeta) (models.Package, error) {
	pkg, err := s.packages.GetPackage(ctx, packageID)
	if err != nil {
		return models.Package{}, err
	}
	if pkg.AgentID == nil || *pkg.AgentID != agentID {
		return models.Package{}, ErrForbidden
	}

	photoURL, err := s.photos.Save(ctx, packageID, photoBytes)
	if err != nil {
		return models.Package{}, fmt.Errorf("persist photo: %w", err)
	}

	deliveredAt := time.Now().UTC()
	if err := s.packages.MarkDelivered(ctx, packageID, photoURL, lat, lng, deliveredAt); err != nil {
		return models.Package{}, err
	}

	if err := s.audits.AppendDeliveryAudit(ctx, models.DeliveryAudit{
		PackageID:   packageID,
		AgentID:     agentID,
		Lat:         lat,
		Lng:         lng,
		DeliveredAt: deliveredAt,
		ClientIP:    meta.ClientIP,
		UserAgent:   meta.UserAgent,
	}); err != nil {
		// The delivery is already committed; losing the audit row must not
		// fail the confirmation, only alert operators.
		s.logger.Error("delivery audit append failed",
			"package_id", packageID, "agent_id", agentID, "error", err)
	}

	return s.packages.GetPackage(ctx, packageID)
}
