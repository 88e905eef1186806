package access

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"circle-core/internal/domain"
	"circle-core/internal/scopes"
)

// CircleService owns circle lifecycle: creation (with the owner role and
// membership, atomically) and archival. There is no hard delete.
type CircleService struct {
	circles domain.CircleRepository
	auditor domain.AuditRepository
	catalog *scopes.Catalog
	authz   *AuthorizationService
	logger  *slog.Logger
}

// NewCircleService creates a new CircleService.
func NewCircleService(
	circles domain.CircleRepository,
	auditor domain.AuditRepository,
	catalog *scopes.Catalog,
	authz *AuthorizationService,
	logger *slog.Logger,
) *CircleService {
	return &CircleService{
		circles: circles,
		auditor: auditor,
		catalog: catalog,
		authz:   authz,
		logger:  logger,
	}
}

// CreateCircleWithOwner atomically creates the circle, its owner role
// (holding the full catalog), and the owner membership. This is the only
// path that creates an owner-level role.
func (s *CircleService) CreateCircleWithOwner(ctx context.Context, name string, owner domain.Principal) (*domain.Circle, *domain.Membership, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, domain.ErrValidation("circle name is required")
	}
	if err := owner.Validate(); err != nil {
		return nil, nil, err
	}
	slug := domain.Slugify(name)
	if slug == "" {
		return nil, nil, domain.ErrValidation("circle name %q yields an empty slug", name)
	}

	now := time.Now().UTC()
	circle := &domain.Circle{
		ID:        domain.NewID(),
		Name:      name,
		Slug:      slug,
		Status:    domain.CircleActive,
		CreatedAt: now,
	}
	ownerRole := &domain.Role{
		ID:        domain.NewID(),
		CircleID:  circle.ID,
		Name:      "Owner",
		Level:     domain.LevelOwner,
		Scopes:    s.catalog.Scopes(),
		CreatedAt: now,
	}
	ownerMembership := &domain.Membership{
		ID:        domain.NewID(),
		CircleID:  circle.ID,
		Principal: owner,
		RoleID:    ownerRole.ID,
		IsActive:  true,
		JoinedAt:  now,
	}

	if err := s.circles.CreateWithOwner(ctx, circle, ownerRole, ownerMembership); err != nil {
		return nil, nil, err
	}

	audit(ctx, s.auditor, s.logger, &circle.ID, owner, "CREATE_CIRCLE", domain.AuditAllowed, "slug="+slug)
	s.logger.Info("circle created", "circle", circle.ID, "slug", slug, "owner", owner.Key())
	return circle, ownerMembership, nil
}

// ArchiveCircle freezes the circle: every subsequent mutation fails while
// history stays readable. Permitted to the owner or any holder of
// manage_circle.
func (s *CircleService) ArchiveCircle(ctx context.Context, circleID string, acting domain.Principal) error {
	if _, err := s.circles.GetByID(ctx, circleID); err != nil {
		return err
	}

	owner, err := s.authz.isOwner(ctx, circleID, acting)
	if err != nil {
		return err
	}
	if !owner {
		if err := s.authz.requireScope(ctx, circleID, acting, "manage_circle"); err != nil {
			audit(ctx, s.auditor, s.logger, &circleID, acting, "ARCHIVE_CIRCLE", domain.AuditDenied, err.Error())
			return err
		}
	}

	if err := s.circles.Archive(ctx, circleID); err != nil {
		return err
	}
	audit(ctx, s.auditor, s.logger, &circleID, acting, "ARCHIVE_CIRCLE", domain.AuditAllowed, "")
	s.logger.Info("circle archived", "circle", circleID, "by", acting.Key())
	return nil
}

// GetCircle returns a circle by ID.
func (s *CircleService) GetCircle(ctx context.Context, circleID string) (*domain.Circle, error) {
	return s.circles.GetByID(ctx, circleID)
}

// GetCircleBySlug returns a circle by slug.
func (s *CircleService) GetCircleBySlug(ctx context.Context, slug string) (*domain.Circle, error) {
	return s.circles.GetBySlug(ctx, slug)
}

// ListCircles returns a page of circles.
func (s *CircleService) ListCircles(ctx context.Context, page domain.PageRequest) ([]domain.Circle, int64, error) {
	return s.circles.List(ctx, page)
}

// requireActiveCircle loads the circle and rejects mutations against
// non-active circles. This read gives the caller a precise error; the
// repositories re-check the status inside the write itself, which is what
// holds the freeze when an archive races the mutation.
func requireActiveCircle(ctx context.Context, circles domain.CircleRepository, circleID string) (*domain.Circle, error) {
	c, err := circles.GetByID(ctx, circleID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive() {
		return nil, domain.ErrConflict("circle %q is %s", c.Slug, c.Status)
	}
	return c, nil
}
