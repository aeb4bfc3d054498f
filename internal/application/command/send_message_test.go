package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-platform/internal/domain/chat"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

func TestSendMessage_PersistsAndRelays(t *testing.T) {
	e := newEnv(t)
	mod := e.module("Intro")
	relay := &fakeRelay{}
	h := NewSendMessageHandler(e.deps, relay)

	first, err := h.Handle(context.Background(), SendMessageCommand{Principal: e.teacher, ModuleID: mod.ID, Text: "welcome", Type: chat.SideLeft})
	require.NoError(t, err)
	assert.True(t, first.Relayed)

	reply, err := h.Handle(context.Background(), SendMessageCommand{
		Principal: e.student, ModuleID: mod.ID, Text: "thanks", ReplyID: &first.Message.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, chat.SideRight, reply.Message.Type)

	assert.Equal(t, []string{"module_" + shared.FormatID(mod.ID), "module_" + shared.FormatID(mod.ID)}, relay.groups)
	assert.Equal(t, chat.Payload{Message: "thanks", User: "alice", Type: 1, Reply: &first.Message.ID}, relay.payload[1])
	assert.Equal(t, 2, e.store.Stats().Messages)
}

func TestSendMessage_RelayFailureIsNotAnError(t *testing.T) {
	e := newEnv(t)
	mod := e.module("Intro")
	h := NewSendMessageHandler(e.deps, &fakeRelay{err: errRelayDown})

	res, err := h.Handle(context.Background(), SendMessageCommand{Principal: e.student, ModuleID: mod.ID, Text: "hi"})
	require.NoError(t, err)
	assert.False(t, res.Relayed)
	assert.Equal(t, 1, e.store.Stats().Messages)
	assert.Equal(t, []shared.EventType{shared.EventChatMessageSent}, e.publisher.types())
}

func TestSendMessage_Validation(t *testing.T) {
	e := newEnv(t)
	mod := e.module("Intro")
	h := NewSendMessageHandler(e.deps, &fakeRelay{})
	missing := int64(404)

	_, err := h.Handle(context.Background(), SendMessageCommand{Principal: e.student, ModuleID: 404, Text: "hi"})
	assert.ErrorIs(t, err, shared.ErrModuleNotFound)

	_, err = h.Handle(context.Background(), SendMessageCommand{Principal: e.student, ModuleID: mod.ID, Text: "hi", ReplyID: &missing})
	assert.ErrorIs(t, err, shared.ErrMessageNotFound)

	_, err = h.Handle(context.Background(), SendMessageCommand{Principal: e.student, ModuleID: mod.ID, Text: "  "})
	assert.ErrorIs(t, err, shared.ErrEmptyMessage)

	_, err = h.Handle(context.Background(), SendMessageCommand{Principal: e.student, ModuleID: mod.ID, Text: "hi", Type: 7})
	assert.ErrorIs(t, err, shared.ErrInvalidSide)

	assert.Equal(t, 0, e.store.Stats().Messages)
}
