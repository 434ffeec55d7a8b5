package eventhandler

import (
	"log/slog"

	"github.com/tradequest/tradequest-core/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// EVENT AUDIT LOGGER
// Журналирует каждое доменное событие для аналитики и отладки.
//
// Подписывается через SubscribeAll: один приёмник для всех типов.
// Журнал — побочный эффект, поэтому handler никогда не возвращает
// ошибку и не влияет на доставку событий другим подписчикам.
// ═══════════════════════════════════════════════════════════════════════════

// EventAuditLogger пишет след всех доменных событий в структурированный лог.
type EventAuditLogger struct {
	logger *slog.Logger
}

// NewEventAuditLogger создаёт журнал событий.
func NewEventAuditLogger(logger *slog.Logger) *EventAuditLogger {
	if logger == nil {
		logger = slog.Default()
	}

	return &EventAuditLogger{
		logger: logger.With("handler", "event_audit"),
	}
}

// Handle реализует интерфейс shared.EventHandler.
func (l *EventAuditLogger) Handle(event shared.Event) error {
	attrs := []any{
		"event_type", string(event.EventType()),
		"aggregate_id", event.AggregateID(),
		"occurred_at", event.OccurredAt(),
	}

	for key, value := range event.Payload() {
		attrs = append(attrs, "payload."+key, value)
	}

	l.logger.Debug("domain event", attrs...)
	return nil
}
