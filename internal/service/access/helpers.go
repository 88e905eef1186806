package access

import (
	"context"
	"log/slog"
	"time"

	"circle-core/internal/domain"
)

// audit records a mutation outcome. Audit writes are best-effort: a failed
// insert is logged, never propagated, so audit storage trouble cannot block
// administrative operations.
func audit(ctx context.Context, repo domain.AuditRepository, logger *slog.Logger,
	circleID *string, actor domain.Principal, action, status, detail string) {
	err := repo.Insert(ctx, &domain.AuditEntry{
		ID:           domain.NewID(),
		CircleID:     circleID,
		PrincipalKey: actor.Key(),
		Action:       action,
		Status:       status,
		Detail:       detail,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		logger.Warn("audit insert failed", "action", action, "error", err)
	}
}
