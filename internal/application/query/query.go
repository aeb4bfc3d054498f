package query

import (
	"github.com/coursehub/coursehub-platform/internal/application/issuance"
	"github.com/coursehub/coursehub-platform/internal/application/uow"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
	"github.com/coursehub/coursehub-platform/pkg/timeutil"
)

// Deps - общие зависимости обработчиков запросов.
type Deps struct {
	UoW       uow.UnitOfWork
	Archive   *issuance.Archive
	Publisher shared.EventPublisher
	Clock     timeutil.Clock
	Log       *logger.Logger
}

func (d Deps) withDefaults(component string) Deps {
	if d.Publisher == nil {
		d.Publisher = shared.NopPublisher{}
	}
	d.Clock = d.Clock.OrSystem()
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	d.Log = d.Log.With(logger.Component(component))
	return d
}

func (d Deps) url(ref string) string {
	if d.Archive == nil {
		return ""
	}
	return d.Archive.URL(ref)
}

func errInvalid(op, message string) error {
	return shared.NewDomainError("query", op, shared.ErrInvalidArgument, message)
}
