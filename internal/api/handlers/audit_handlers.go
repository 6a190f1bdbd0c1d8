package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/justthetip/treasury_service/internal/domain/entities"
	"github.com/justthetip/treasury_service/pkg/logger"
)

// AuditTrail reads the append-only audit log.
type AuditTrail interface {
	ListBySubject(ctx context.Context, subjectID string) ([]*entities.AuditEntry, error)
}

// AuditHandlers exposes the audit trail over HTTP.
type AuditHandlers struct {
	trail  AuditTrail
	logger *logger.Logger
}

// NewAuditHandlers creates audit handlers.
func NewAuditHandlers(trail AuditTrail, log *logger.Logger) *AuditHandlers {
	return &AuditHandlers{trail: trail, logger: log}
}

// GetTrail handles GET /audit/:subject_id, returning every recorded decision
// for one withdrawal, proposal or wallet.
func (h *AuditHandlers) GetTrail(c *gin.Context) {
	subjectID := c.Param("subject_id")
	if subjectID == "" {
		respondBadRequest(c, "subject_id is required")
		return
	}

	entries, err := h.trail.ListBySubject(c.Request.Context(), subjectID)
	if err != nil {
		h.logger.Error("Failed to read audit trail", "error", err, "subject_id", subjectID)
		respondInternalError(c, "failed to read audit trail")
		return
	}

	respondSuccess(c, gin.H{"entries": entries, "count": len(entries)})
}
