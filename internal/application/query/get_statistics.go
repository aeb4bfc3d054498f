package query

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATISTICS QUERY
// Публичные счётчики платформы. Результат кэшируется на короткий TTL.
// ══════════════════════════════════════════════════════════════════════════════

// StatisticsDTO - счётчики платформы.
type StatisticsDTO struct {
	CoursesCount  int `json:"courses_count"`
	TeachersCount int `json:"teachers_count"`
	StudentsCount int `json:"students_count"`
}

// StatisticsCache - кэш счётчиков (Redis в production).
type StatisticsCache interface {
	// Get возвращает закэшированные счётчики; ok = false при промахе.
	Get(ctx context.Context) (stats *StatisticsDTO, ok bool, err error)

	// Set сохраняет счётчики на ttl.
	Set(ctx context.Context, stats *StatisticsDTO, ttl time.Duration) error
}

// DefaultStatisticsTTL - время жизни кэша по умолчанию.
const DefaultStatisticsTTL = time.Minute

// GetStatisticsHandler обрабатывает запрос.
type GetStatisticsHandler struct {
	deps  Deps
	cache StatisticsCache
	ttl   time.Duration
}

// NewGetStatisticsHandler создаёт обработчик. cache может быть nil.
func NewGetStatisticsHandler(deps Deps, cache StatisticsCache, ttl time.Duration) *GetStatisticsHandler {
	if ttl <= 0 {
		ttl = DefaultStatisticsTTL
	}
	return &GetStatisticsHandler{deps: deps.withDefaults("get_statistics"), cache: cache, ttl: ttl}
}

// Handle выполняет запрос. Ошибки кэша не прерывают запрос.
func (h *GetStatisticsHandler) Handle(ctx context.Context) (*StatisticsDTO, error) {
	if h.cache != nil {
		cached, ok, err := h.cache.Get(ctx)
		if err != nil {
			h.deps.Log.Warn("statistics cache read failed", logger.Err(err))
		} else if ok {
			return cached, nil
		}
	}

	repos := h.deps.UoW.Repositories()
	stats := &StatisticsDTO{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := repos.Courses.Count(gctx)
		stats.CoursesCount = n
		return err
	})
	g.Go(func() error {
		n, err := repos.Users.CountByRole(gctx, shared.RoleTeacher)
		stats.TeachersCount = n
		return err
	})
	g.Go(func() error {
		n, err := repos.Users.CountByRole(gctx, shared.RoleStudent)
		stats.StudentsCount = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("get_statistics: %w", err)
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, stats, h.ttl); err != nil {
			h.deps.Log.Warn("statistics cache write failed", logger.Err(err))
		}
	}
	return stats, nil
}
