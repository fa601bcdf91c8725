package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/godilite/feedback-reward/internal/repository/models"
	"github.com/google/uuid"
)

// timeLayout is fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// buildScanQuery assembles the conversation scan for a filter. Messages are
// joined in so a whole window is read with one query.
func buildScanQuery(filter models.ConversationFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`
		SELECT
			c.id, c.org_id, c.user_id, c.created_at,
			m.id, m.message_type, m.content, m.feedback, m.created_at
		FROM conversations AS c
		LEFT JOIN messages AS m ON m.conversation_id = c.id
		WHERE c.is_deleted = 0`)

	var args []any
	if filter.OrgID != "" {
		b.WriteString(" AND c.org_id = ?")
		args = append(args, filter.OrgID)
	}
	if filter.UserID != "" {
		b.WriteString(" AND c.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.CreatedFrom != nil {
		b.WriteString(" AND c.created_at >= ?")
		args = append(args, formatTime(*filter.CreatedFrom))
	}
	if filter.CreatedTo != nil {
		b.WriteString(" AND c.created_at <= ?")
		args = append(args, formatTime(*filter.CreatedTo))
	}
	b.WriteString(" ORDER BY c.created_at, c.id, m.seq")

	return b.String(), args
}

func encodeFeedback(entries []models.FeedbackEntry) (string, error) {
	if entries == nil {
		entries = []models.FeedbackEntry{}
	}
	b, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type messageColumns struct {
	id          sql.NullString
	messageType sql.NullString
	content     sql.NullString
	feedback    sql.NullString
	createdAt   sql.NullString
}

func (m messageColumns) toMessage() models.Message {
	return models.Message{
		ID:          m.id.String,
		MessageType: m.messageType.String,
		Content:     m.content.String,
		CreatedAt:   parseTime(m.createdAt.String),
		Feedback:    models.ParseFeedbackList([]byte(m.feedback.String)),
	}
}

// StreamConversations scans every non-deleted conversation matching filter
// and calls fn once per conversation, in creation order, with its messages in
// order. Scanning stops at the first error returned by fn.
func (r *ConversationRepository) StreamConversations(ctx context.Context, filter models.ConversationFilter, fn func(models.Conversation) error) error {
	query, args := buildScanQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query StreamConversations: %w", err)
	}
	defer rows.Close()

	var current *models.Conversation
	for rows.Next() {
		var (
			id, orgID, userID, createdAt string
			msg                          messageColumns
		)
		if err := rows.Scan(&id, &orgID, &userID, &createdAt,
			&msg.id, &msg.messageType, &msg.content, &msg.feedback, &msg.createdAt); err != nil {
			return fmt.Errorf("scan StreamConversations row: %w", err)
		}

		if current == nil || current.ID != id {
			if current != nil {
				if err := fn(*current); err != nil {
					return err
				}
			}
			current = &models.Conversation{
				ID:        id,
				OrgID:     orgID,
				UserID:    userID,
				CreatedAt: parseTime(createdAt),
			}
		}
		if msg.id.Valid {
			current.Messages = append(current.Messages, msg.toMessage())
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate StreamConversations: %w", err)
	}
	if current != nil {
		return fn(*current)
	}
	return nil
}

// GetConversation fetches one conversation by ID. It returns nil, nil when no
// such conversation exists.
func (r *ConversationRepository) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	const convQuery = `
		SELECT id, org_id, user_id, is_deleted, created_at
		FROM conversations
		WHERE id = ?
	`

	var (
		conv      models.Conversation
		isDeleted int
		createdAt string
	)
	err := r.db.QueryRowContext(ctx, convQuery, id).Scan(&conv.ID, &conv.OrgID, &conv.UserID, &isDeleted, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query GetConversation: %w", err)
	}
	conv.IsDeleted = isDeleted != 0
	conv.CreatedAt = parseTime(createdAt)

	const msgQuery = `
		SELECT id, message_type, content, feedback, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq
	`
	rows, err := r.db.QueryContext(ctx, msgQuery, id)
	if err != nil {
		return nil, fmt.Errorf("query GetConversation messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var msg messageColumns
		if err := rows.Scan(&msg.id, &msg.messageType, &msg.content, &msg.feedback, &msg.createdAt); err != nil {
			return nil, fmt.Errorf("scan GetConversation message: %w", err)
		}
		conv.Messages = append(conv.Messages, msg.toMessage())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetConversation messages: %w", err)
	}

	return &conv, nil
}

// InsertConversation stores a conversation and its messages in one
// transaction. Missing IDs are generated. It returns the conversation ID.
func (r *ConversationRepository) InsertConversation(ctx context.Context, conv models.Conversation) (string, error) {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin InsertConversation: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	deleted := 0
	if conv.IsDeleted {
		deleted = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, org_id, user_id, is_deleted, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, conv.ID, conv.OrgID, conv.UserID, deleted, formatTime(conv.CreatedAt)); err != nil {
		return "", fmt.Errorf("insert conversation: %w", err)
	}

	for seq, msg := range conv.Messages {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = conv.CreatedAt
		}
		feedback, err := encodeFeedback(msg.Feedback)
		if err != nil {
			return "", fmt.Errorf("encode feedback for message %s: %w", msg.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, seq, message_type, content, feedback, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, msg.ID, conv.ID, seq, msg.MessageType, msg.Content, feedback, formatTime(msg.CreatedAt)); err != nil {
			return "", fmt.Errorf("insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit InsertConversation: %w", err)
	}
	return conv.ID, nil
}
