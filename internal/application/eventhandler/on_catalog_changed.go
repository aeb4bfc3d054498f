package eventhandler

import (
	"context"
	"time"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON CATALOG CHANGED HANDLER
// Сбрасывает кэш публичной статистики при создании курса или пользователя.
// ═══════════════════════════════════════════════════════════════════════════

// Invalidator - кэш, который умеет сбрасываться.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// OnCatalogChangedHandler обрабатывает catalog.course_created и account.user_registered.
type OnCatalogChangedHandler struct {
	cache Invalidator
	log   *logger.Logger
}

// NewOnCatalogChangedHandler создаёт обработчик.
func NewOnCatalogChangedHandler(cache Invalidator, log *logger.Logger) *OnCatalogChangedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &OnCatalogChangedHandler{cache: cache, log: log.With(logger.Component("on_catalog_changed"))}
}

// Events возвращает типы событий, на которые нужно подписать обработчик.
func (h *OnCatalogChangedHandler) Events() []shared.EventType {
	return []shared.EventType{shared.EventCourseCreated, shared.EventUserRegistered}
}

// Handle реализует shared.EventHandler.
func (h *OnCatalogChangedHandler) Handle(event shared.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.cache.Invalidate(ctx); err != nil {
		h.log.Warn("statistics cache invalidation failed",
			logger.EventType(string(event.EventType())),
			logger.Err(err),
		)
		return err
	}
	return nil
}
