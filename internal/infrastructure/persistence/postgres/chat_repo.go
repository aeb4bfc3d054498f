package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/coursehub/coursehub-platform/internal/domain/chat"
	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

// MessageRepository implements chat.Repository for PostgreSQL.
type MessageRepository struct {
	q Querier
}

const messageSelect = `
	SELECT m.id, m.module_id, m.user_id, coalesce(u.username, ''), m.text, m.type,
	       m.reply_id, coalesce(r.text, ''), m.date
	FROM messages m
	LEFT JOIN users u ON u.id = m.user_id
	LEFT JOIN messages r ON r.id = m.reply_id
`

// Create stores a message and fills ID, Date and ReplyText.
func (r *MessageRepository) Create(ctx context.Context, m *chat.Message) error {
	if m.ReplyID != nil {
		if err := r.q.QueryRow(ctx, `SELECT text FROM messages WHERE id = $1`, *m.ReplyID).Scan(&m.ReplyText); err != nil {
			if IsNoRows(err) {
				return shared.ErrMessageNotFound
			}
			return fmt.Errorf("failed to get replied message: %w", err)
		}
	}
	if m.Date.IsZero() {
		m.Date = time.Now().UTC()
	}

	err := r.q.QueryRow(ctx, `
		INSERT INTO messages (module_id, user_id, text, type, reply_id, date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, m.ModuleID, string(m.UserID), m.Text, int(m.Type), m.ReplyID, m.Date).Scan(&m.ID)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return shared.ErrModuleNotFound
		}
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// GetByID returns a message with its author name and reply text.
func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*chat.Message, error) {
	m, err := scanMessage(r.q.QueryRow(ctx, messageSelect+` WHERE m.id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

// ListByAuthors returns module messages from authors, oldest first.
func (r *MessageRepository) ListByAuthors(ctx context.Context, moduleID int64, authors []shared.UserID) ([]*chat.Message, error) {
	if len(authors) == 0 {
		return nil, nil
	}

	ids := make([]string, len(authors))
	for i, a := range authors {
		ids[i] = string(a)
	}

	rows, err := r.q.Query(ctx, messageSelect+`
		WHERE m.module_id = $1 AND m.user_id = ANY($2)
		ORDER BY m.date, m.id
	`, moduleID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return collect(rows, scanMessage)
}

func scanMessage(row rowScanner) (*chat.Message, error) {
	var (
		m      chat.Message
		userID string
		side   int
	)
	err := row.Scan(&m.ID, &m.ModuleID, &userID, &m.Username, &m.Text, &side, &m.ReplyID, &m.ReplyText, &m.Date)
	if err != nil {
		return nil, err
	}
	m.UserID = shared.UserID(userID)
	m.Type = chat.Side(side)
	m.Date = m.Date.UTC()
	return &m, nil
}
