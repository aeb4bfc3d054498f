// Package command contains write operations (CQRS - Commands).
//
// Every handler runs its mutations inside one uow.UnitOfWork transaction and
// publishes domain events only after that transaction has committed.
package command

import (
	"github.com/coursehub/coursehub-platform/internal/application/uow"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
	"github.com/coursehub/coursehub-platform/pkg/timeutil"
)

// Deps are the collaborators shared by all command handlers.
type Deps struct {
	UoW       uow.UnitOfWork
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

// publish sends events after commit. Failures are logged only: the state
// change is already durable.
func (d Deps) publish(events ...shared.Event) {
	for _, event := range events {
		if err := d.Publisher.Publish(event); err != nil {
			d.Log.Warn("event publish failed",
				logger.EventType(string(event.EventType())),
				logger.Err(err),
			)
		}
	}
}

// requireStudent validates the caller and checks the student role.
func requireStudent(p shared.Principal) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return p.RequireRole(shared.RoleStudent)
}

// requireAuthor validates the caller and checks the teacher or admin role.
func requireAuthor(p shared.Principal) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !p.CanAuthor() {
		return shared.ErrNotCourseTeacher
	}
	return nil
}

func errInvalid(op, message string) error {
	return shared.NewDomainError("command", op, shared.ErrInvalidArgument, message)
}
