package query

import (
	"context"
	"fmt"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST MESSAGES QUERY
// Переписка в чате модуля между вызывающим и собеседником.
// Собеседник по умолчанию - преподаватель курса.
// ══════════════════════════════════════════════════════════════════════════════

// ListMessagesQuery - параметры запроса.
type ListMessagesQuery struct {
	Principal shared.Principal
	ModuleID  int64

	// Counterpart - второй участник (пустой - преподаватель курса).
	Counterpart shared.UserID
}

// Validate проверяет корректность параметров запроса.
func (q *ListMessagesQuery) Validate() error {
	if err := q.Principal.Validate(); err != nil {
		return err
	}
	if q.ModuleID <= 0 {
		return errInvalid("ListMessages", "module id is required")
	}
	return nil
}

// ListMessagesHandler обрабатывает запрос.
type ListMessagesHandler struct {
	deps Deps
}

// NewListMessagesHandler создаёт обработчик.
func NewListMessagesHandler(deps Deps) *ListMessagesHandler {
	return &ListMessagesHandler{deps: deps.withDefaults("list_messages")}
}

// Handle выполняет запрос. Сообщения отсортированы по дате.
func (h *ListMessagesHandler) Handle(ctx context.Context, q ListMessagesQuery) ([]MessageDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("list_messages: validation failed: %w", err)
	}
	repos := h.deps.UoW.Repositories()

	module, err := repos.Modules.GetByID(ctx, q.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("list_messages: %w", err)
	}

	counterpart := q.Counterpart
	if counterpart.IsEmpty() {
		course, err := repos.Courses.GetByID(ctx, module.CourseID)
		if err != nil {
			return nil, fmt.Errorf("list_messages: failed to get course: %w", err)
		}
		counterpart = course.TeacherID
	}

	authors := []shared.UserID{q.Principal.ID}
	if counterpart != q.Principal.ID {
		authors = append(authors, counterpart)
	}

	messages, err := repos.Messages.ListByAuthors(ctx, q.ModuleID, authors)
	if err != nil {
		return nil, fmt.Errorf("list_messages: %w", err)
	}

	out := make([]MessageDTO, 0, len(messages))
	for _, m := range messages {
		out = append(out, MessageDTOOf(m))
	}
	return out, nil
}
