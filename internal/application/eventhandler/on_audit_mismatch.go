package eventhandler

import (
	"log/slog"

	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON AUDIT MISMATCH HANDLER
// Реагирует на расхождение между суммой ledger и кешем профиля.
//
// Ledger — источник истины: totalXP профиля обязан равняться сумме
// его событий. Расхождение означает баг или ручное вмешательство в
// данные, и его нельзя молча исправлять — сначала расследование.
// ═══════════════════════════════════════════════════════════════════════════

// OnAuditMismatchHandler журналирует нарушения консистентности,
// найденные фоновым аудитом. Автоматического исправления нет.
type OnAuditMismatchHandler struct {
	logger *slog.Logger
}

// NewOnAuditMismatchHandler создаёт обработчик.
func NewOnAuditMismatchHandler(logger *slog.Logger) *OnAuditMismatchHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnAuditMismatchHandler{
		logger: logger.With("handler", "on_audit_mismatch"),
	}
}

// Handle реализует интерфейс shared.EventHandler.
func (h *OnAuditMismatchHandler) Handle(event shared.Event) error {
	mismatch, ok := event.(shared.LevelAuditMismatchEvent)
	if !ok {
		h.logger.Warn("received unexpected event",
			"event_type", event.EventType(),
		)
		return nil
	}

	h.logger.Error("ledger and profile totals diverged",
		"user_id", mismatch.UserID,
		"ledger_sum", mismatch.LedgerSum,
		"profile_total", mismatch.ProfileTotal,
		"delta", mismatch.LedgerSum-mismatch.ProfileTotal,
		"correlation_id", mismatch.CorrelationID,
	)

	return nil
}

// EventType возвращает тип события, который обрабатывает этот handler.
func (h *OnAuditMismatchHandler) EventType() shared.EventType {
	return shared.EventLevelAuditMismatch
}
