// Package eventhandler содержит обработчики доменных событий.
// Обработчики подписываются на шину после старта приложения и
// вызываются уже после фиксации транзакции, поэтому их ошибки
// не откатывают исходную операцию.
package eventhandler

import (
	"sort"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// AUDIT LOG HANDLER
// Пишет каждое доменное событие в структурированный лог.
// ═══════════════════════════════════════════════════════════════════════════

// AuditLogHandler записывает события в лог.
type AuditLogHandler struct {
	log *logger.Logger
}

// NewAuditLogHandler создаёт обработчик.
func NewAuditLogHandler(log *logger.Logger) *AuditLogHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuditLogHandler{log: log.With(logger.Component("audit"))}
}

// correlated реализуется событиями со встроенным shared.BaseEvent.
type correlated interface {
	Correlation() string
}

// Handle реализует shared.EventHandler.
func (h *AuditLogHandler) Handle(event shared.Event) error {
	fields := []logger.Field{
		logger.EventType(string(event.EventType())),
		logger.String("aggregate_id", event.AggregateID()),
		logger.Time("occurred_at", event.OccurredAt()),
	}
	if c, ok := event.(correlated); ok && c.Correlation() != "" {
		fields = append(fields, logger.Correlation(c.Correlation()))
	}

	payload := event.Payload()
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, logger.Any(k, payload[k]))
	}

	h.log.Info("domain event", fields...)
	return nil
}
