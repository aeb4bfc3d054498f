// Package chat содержит сообщения чата модуля и контракт ретранслятора,
// который рассылает их подписчикам группы module_{id}.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// Side - сторона отображения сообщения в клиенте.
type Side int

const (
	SideRight Side = 1
	SideLeft  Side = 2
)

// IsValid проверяет, что сторона известна.
func (s Side) IsValid() bool {
	return s == SideRight || s == SideLeft
}

// Message - сообщение в чате модуля.
type Message struct {
	ID       int64
	ModuleID int64
	UserID   shared.UserID

	// Username заполняется при чтении для отображения и рассылки.
	Username string

	Text string
	Type Side

	// ReplyID - сообщение, на которое это отвечает (опционально).
	ReplyID *int64

	// ReplyText заполняется при чтении, если есть ReplyID.
	ReplyText string

	Date time.Time
}

// NewMessage создаёт сообщение. Нулевой тип означает SideRight.
func NewMessage(moduleID int64, author shared.Principal, text string, side Side, replyID *int64) (*Message, error) {
	if moduleID <= 0 {
		return nil, shared.NewDomainError("chat", "NewMessage", shared.ErrInvalidArgument, "module is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, shared.ErrEmptyMessage
	}
	if side == 0 {
		side = SideRight
	}
	if !side.IsValid() {
		return nil, shared.ErrInvalidSide
	}
	return &Message{
		ModuleID: moduleID,
		UserID:   author.ID,
		Username: author.Username,
		Text:     text,
		Type:     side,
		ReplyID:  replyID,
		Date:     time.Now().UTC(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RELAY
// ══════════════════════════════════════════════════════════════════════════════

// Payload - то, что получает подписчик группы.
type Payload struct {
	Message string `json:"message"`
	User    string `json:"user"`
	Type    int    `json:"type"`
	Reply   *int64 `json:"reply"`
}

// PayloadOf строит рассылку из сохранённого сообщения.
func PayloadOf(m *Message) Payload {
	return Payload{
		Message: m.Text,
		User:    m.Username,
		Type:    int(m.Type),
		Reply:   m.ReplyID,
	}
}

// GroupKey возвращает ключ группы рассылки модуля.
func GroupKey(moduleID int64) string {
	return fmt.Sprintf("module_%d", moduleID)
}

// Relay - ретранслятор publish/subscribe. Своей логики не имеет.
type Relay interface {
	// GroupSend отправляет payload всем подписчикам группы.
	GroupSend(ctx context.Context, group string, payload Payload) error
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository - хранилище сообщений.
type Repository interface {
	// Create сохраняет сообщение и заполняет ID и Date.
	Create(ctx context.Context, m *Message) error

	// GetByID возвращает сообщение или ErrMessageNotFound.
	GetByID(ctx context.Context, id int64) (*Message, error)

	// ListByAuthors возвращает сообщения модуля от указанных авторов по возрастанию даты.
	ListByAuthors(ctx context.Context, moduleID int64, authors []shared.UserID) ([]*Message, error)
}
