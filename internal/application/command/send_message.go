package command

import (
	"context"
	"fmt"
	"time"

	"github.com/coursehub/coursehub-platform/internal/application/uow"
	"github.com/coursehub/coursehub-platform/internal/domain/chat"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEND MESSAGE COMMAND
// Persists a module chat message, then relays it to module_{id} subscribers.
// The relay runs after commit and its failure never fails the command.
// ══════════════════════════════════════════════════════════════════════════════

// relayTimeout bounds the post-commit relay call.
const relayTimeout = 3 * time.Second

// SendMessageCommand contains the message to post.
type SendMessageCommand struct {
	Principal shared.Principal
	ModuleID  int64
	Text      string
	Type      chat.Side
	ReplyID   *int64

	CorrelationID string
}

// Validate validates the command.
func (c SendMessageCommand) Validate() error {
	if err := c.Principal.Validate(); err != nil {
		return err
	}
	if c.ModuleID <= 0 {
		return errInvalid("SendMessage", "module_id is required")
	}
	return nil
}

// SendMessageResult is the stored message.
type SendMessageResult struct {
	Message *chat.Message

	// Relayed is false when the broadcast failed.
	Relayed bool
}

// SendMessageHandler handles SendMessageCommand.
type SendMessageHandler struct {
	deps  Deps
	relay chat.Relay
}

// NewSendMessageHandler creates a new SendMessageHandler.
func NewSendMessageHandler(deps Deps, relay chat.Relay) *SendMessageHandler {
	return &SendMessageHandler{deps: deps.withDefaults("send_message"), relay: relay}
}

// Handle executes the command.
func (h *SendMessageHandler) Handle(ctx context.Context, cmd SendMessageCommand) (*SendMessageResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("send_message: validation failed: %w", err)
	}

	msg, err := chat.NewMessage(cmd.ModuleID, cmd.Principal, cmd.Text, cmd.Type, cmd.ReplyID)
	if err != nil {
		return nil, fmt.Errorf("send_message: %w", err)
	}
	msg.Date = h.deps.Clock().UTC()

	err = h.deps.UoW.Do(ctx, func(ctx context.Context, repos uow.Repositories) error {
		if _, err := repos.Modules.GetByID(ctx, cmd.ModuleID); err != nil {
			return fmt.Errorf("failed to get module: %w", err)
		}
		if cmd.ReplyID != nil {
			if _, err := repos.Messages.GetByID(ctx, *cmd.ReplyID); err != nil {
				return fmt.Errorf("failed to get reply target: %w", err)
			}
		}
		if err := repos.Messages.Create(ctx, msg); err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("send_message: %w", err)
	}

	result := &SendMessageResult{Message: msg, Relayed: h.broadcast(ctx, msg)}

	event := shared.NewChatMessageSentEvent(msg.ID, msg.ModuleID, msg.UserID)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	h.deps.publish(event)

	return result, nil
}

// broadcast relays the message, detached from the request's cancellation.
func (h *SendMessageHandler) broadcast(ctx context.Context, msg *chat.Message) bool {
	if h.relay == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), relayTimeout)
	defer cancel()

	group := chat.GroupKey(msg.ModuleID)
	if err := h.relay.GroupSend(ctx, group, chat.PayloadOf(msg)); err != nil {
		h.deps.Log.Warn("chat relay failed",
			logger.String("group", group),
			logger.Int64("message_id", msg.ID),
			logger.Err(err),
		)
		return false
	}
	return true
}
