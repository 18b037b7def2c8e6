package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"support-chat-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository is the append-only ordered log of a room's messages.
// Soft deletion only ever grows the deleted-for set; the log itself is
// immutable except for a hard clear.
type MessageRepository interface {
	// Append stores the message and reports whether it was newly inserted.
	// A duplicate id is absorbed silently: (false, nil).
	Append(ctx context.Context, roomID string, msg models.Message) (bool, error)
	// History returns the full log in append order, soft-deleted entries
	// included. Filtering for a viewer is the caller's job.
	History(ctx context.Context, roomID string) ([]models.Message, error)
	GetMessage(ctx context.Context, roomID string, messageID string) (models.Message, error)
	// MarkDeletedFor adds the account ids to the message's deleted-for set.
	MarkDeletedFor(ctx context.Context, roomID string, messageID string, accountIDs []string) error
	// Clear empties the room's log entirely.
	Clear(ctx context.Context, roomID string) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

type messageRow struct {
	ID         string         `db:"id"`
	SenderID   string         `db:"sender_id"`
	SenderName string         `db:"sender_name"`
	Content    sql.NullString `db:"content"`
	SentAt     int64          `db:"sent_at"`
	ReplyToID  sql.NullString `db:"reply_to_id"`
	ReplyText  sql.NullString `db:"reply_to_text"`
	ReplyName  sql.NullString `db:"reply_to_name"`
	FileName   sql.NullString `db:"file_name"`
	FileSize   sql.NullInt64  `db:"file_size"`
	FileURL    sql.NullString `db:"file_url"`
	DeletedFor pq.StringArray `db:"deleted_for"`
}

func (row messageRow) toModel() models.Message {
	msg := models.Message{
		ID:         row.ID,
		From:       row.SenderID,
		Name:       row.SenderName,
		Text:       row.Content.String,
		Ts:         row.SentAt,
		DeletedFor: row.DeletedFor,
	}
	if row.ReplyToID.Valid {
		msg.ReplyTo = &models.ReplyRef{ID: row.ReplyToID.String, Text: row.ReplyText.String, Name: row.ReplyName.String}
	}
	if row.FileName.Valid {
		msg.File = &models.FileRef{FileName: row.FileName.String, FileSize: row.FileSize.Int64, FileURL: row.FileURL.String}
	}
	return msg
}

// Append inserts the message; a duplicate (room_id, id) is dropped.
func (r *MessageRepo) Append(ctx context.Context, roomID string, msg models.Message) (bool, error) {
	var replyID, replyText, replyName any
	if msg.ReplyTo != nil {
		replyID, replyText, replyName = msg.ReplyTo.ID, msg.ReplyTo.Text, msg.ReplyTo.Name
	}
	var fileName, fileSize, fileURL any
	if msg.File != nil {
		fileName, fileSize, fileURL = msg.File.FileName, msg.File.FileSize, msg.File.FileURL
	}

	res, err := r.db.ExecContext(ctx, `INSERT INTO messages
        (room_id, id, sender_id, sender_name, content, sent_at, reply_to_id, reply_to_text, reply_to_name, file_name, file_size, file_url)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (room_id, id) DO NOTHING`,
		roomID, msg.ID, msg.From, msg.Name, msg.Text, msg.Ts,
		replyID, replyText, replyName, fileName, fileSize, fileURL)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

const messageColumns = `m.id, m.sender_id, m.sender_name, m.content, m.sent_at,
        m.reply_to_id, m.reply_to_text, m.reply_to_name, m.file_name, m.file_size, m.file_url,
        COALESCE(array_agg(d.account_id) FILTER (WHERE d.account_id IS NOT NULL), '{}') AS deleted_for`

const messageGroupBy = `GROUP BY m.seq, m.id, m.sender_id, m.sender_name, m.content, m.sent_at,
        m.reply_to_id, m.reply_to_text, m.reply_to_name, m.file_name, m.file_size, m.file_url`

// History returns the full log in append order.
func (r *MessageRepo) History(ctx context.Context, roomID string) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + `
        FROM messages m
        LEFT JOIN message_deletions d ON d.room_id = m.room_id AND d.message_id = m.id
        WHERE m.room_id=$1
        ` + messageGroupBy + `
        ORDER BY m.seq ASC`

	var rows []messageRow
	if err := r.db.SelectContext(ctx, &rows, query, roomID); err != nil {
		return nil, err
	}

	history := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		history = append(history, row.toModel())
	}
	return history, nil
}

// GetMessage retrieves a single message with its deleted-for set.
func (r *MessageRepo) GetMessage(ctx context.Context, roomID string, messageID string) (models.Message, error) {
	query := `SELECT ` + messageColumns + `
        FROM messages m
        LEFT JOIN message_deletions d ON d.room_id = m.room_id AND d.message_id = m.id
        WHERE m.room_id=$1 AND m.id=$2
        ` + messageGroupBy

	var row messageRow
	if err := r.db.GetContext(ctx, &row, query, roomID, messageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Message{}, ErrMessageNotFound
		}
		return models.Message{}, err
	}
	return row.toModel(), nil
}

// MarkDeletedFor grows the message's deleted-for set; ids already present
// are kept, never removed.
func (r *MessageRepo) MarkDeletedFor(ctx context.Context, roomID string, messageID string, accountIDs []string) error {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM messages WHERE room_id=$1 AND id=$2)`, roomID, messageID); err != nil {
		return err
	}
	if !exists {
		return ErrMessageNotFound
	}

	_, err := r.db.ExecContext(ctx, `INSERT INTO message_deletions (room_id, message_id, account_id)
        SELECT $1, $2, unnest($3::text[])
        ON CONFLICT (room_id, message_id, account_id) DO NOTHING`,
		roomID, messageID, pq.Array(accountIDs))
	return err
}

// Clear hard-deletes the room's log; deletion marks cascade.
func (r *MessageRepo) Clear(ctx context.Context, roomID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE room_id=$1`, roomID)
	return err
}
