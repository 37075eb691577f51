package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LuisNMHN/NetmarketHN-sub000/internal/domain"
	"github.com/LuisNMHN/NetmarketHN-sub000/pkg/xerrors"
)

type ChatRepo struct {
	db *pgxpool.Pool
}

func NewChatRepo(db *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{db: db}
}

const threadColumns = `
	id, context_type, context_id, party_a, party_b, support_user_id,
	context_title, context_data, status, created_at, updated_at, last_message_at`

func scanThread(row pgx.Row) (*domain.Thread, error) {
	var t domain.Thread
	var ctxData []byte
	err := row.Scan(
		&t.ID, &t.ContextType, &t.ContextID, &t.PartyA, &t.PartyB, &t.SupportUserID,
		&t.ContextTitle, &ctxData, &t.Status, &t.CreatedAt, &t.UpdatedAt, &t.LastMessageAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, err
	}
	if len(ctxData) > 0 {
		if err := json.Unmarshal(ctxData, &t.ContextData); err != nil {
			return nil, fmt.Errorf("decode context_data: %w", err)
		}
	}
	return &t, nil
}

// OpenOrGetThread is idempotent and safe under concurrent calls from
// both parties: the partial unique index on active
// (context_type, context_id, party_a, party_b) makes the insert a
// no-op when the thread already exists, and the reselect returns it.
func (r *ChatRepo) OpenOrGetThread(ctx context.Context, t *domain.Thread) (*domain.Thread, error) {
	ctxData, err := json.Marshal(t.ContextData)
	if err != nil {
		return nil, fmt.Errorf("encode context_data: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO chat_threads
			(id, context_type, context_id, party_a, party_b, support_user_id,
			 context_title, context_data, status, created_at, updated_at, last_message_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'active',NOW(),NOW(),NOW())
		ON CONFLICT (context_type, context_id, party_a, party_b) WHERE status='active'
		DO NOTHING
	`, t.ID, t.ContextType, t.ContextID, t.PartyA, t.PartyB, t.SupportUserID,
		t.ContextTitle, ctxData)
	if err != nil {
		return nil, err
	}

	return scanThread(r.db.QueryRow(ctx, `
		SELECT `+threadColumns+`
		FROM chat_threads
		WHERE context_type=$1 AND context_id=$2 AND party_a=$3 AND party_b=$4 AND status='active'
	`, t.ContextType, t.ContextID, t.PartyA, t.PartyB))
}

func (r *ChatRepo) GetThread(ctx context.Context, threadID string) (*domain.Thread, error) {
	return scanThread(r.db.QueryRow(ctx,
		`SELECT `+threadColumns+` FROM chat_threads WHERE id=$1`, threadID))
}

// UpdateThreadStatus transitions a thread out of active only; terminal
// states refuse further transitions at the SQL level.
func (r *ChatRepo) UpdateThreadStatus(ctx context.Context, threadID string, status domain.ThreadStatus) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE chat_threads SET status=$1, updated_at=NOW()
		WHERE id=$2 AND status IN ('active','disputed')
	`, status, threadID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrThreadNotActive
	}
	return nil
}

// AttachSupport sets the support user on a thread.
func (r *ChatRepo) AttachSupport(ctx context.Context, threadID, supportUserID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE chat_threads SET support_user_id=$1, updated_at=NOW() WHERE id=$2
	`, supportUserID, threadID)
	return err
}

// InsertMessage persists a message and bumps the thread's
// last_message_at in one transaction.
func (r *ChatRepo) InsertMessage(ctx context.Context, m *domain.Message) error {
	metadata, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO chat_messages (id, thread_id, sender_id, kind, body, metadata, is_deleted, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,false,NOW(),NOW())
		RETURNING created_at, updated_at
	`, m.ID, m.ThreadID, m.SenderID, m.Kind, m.Body, metadata).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE chat_threads SET last_message_at=$1, updated_at=$1 WHERE id=$2
	`, m.CreatedAt, m.ThreadID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListMessages returns messages ordered by created_at ascending.
// beforeID pages backwards through history; limit caps the page.
func (r *ChatRepo) ListMessages(ctx context.Context, threadID string, beforeID string, limit int) ([]domain.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, thread_id, sender_id, kind, body, metadata, is_deleted, created_at, updated_at
		FROM chat_messages
		WHERE thread_id=$1`
	args := []interface{}{threadID}
	if beforeID != "" {
		query += ` AND created_at < (SELECT created_at FROM chat_messages WHERE id=$2)`
		args = append(args, beforeID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var metadata []byte
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Kind, &m.Body,
			&metadata, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &m.Metadata)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into ascending display order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// SoftDeleteMessage flips is_deleted; the row itself is immutable.
func (r *ChatRepo) SoftDeleteMessage(ctx context.Context, messageID string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE chat_messages SET is_deleted=true, updated_at=NOW() WHERE id=$1
	`, messageID)
	return err
}

// MarkRead upserts the (thread, user) read row.
func (r *ChatRepo) MarkRead(ctx context.Context, threadID, userID, lastMessageID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO chat_read_status (thread_id, user_id, last_read_message_id, last_read_at)
		VALUES ($1,$2,NULLIF($3,''),NOW())
		ON CONFLICT (thread_id, user_id) DO UPDATE SET
			last_read_message_id=COALESCE(NULLIF($3,''), chat_read_status.last_read_message_id),
			last_read_at=NOW()
	`, threadID, userID, lastMessageID)
	return err
}

// ListUserThreads returns the user's threads newest-activity first,
// each with an unread count derived from the read row.
func (r *ChatRepo) ListUserThreads(ctx context.Context, userID string) ([]domain.ThreadSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+threadColumns+`,
			(SELECT COUNT(*) FROM chat_messages m
			 WHERE m.thread_id = t.id
			   AND m.sender_id <> $1
			   AND m.is_deleted = false
			   AND m.created_at > COALESCE(
					(SELECT last_read_at FROM chat_read_status rs
					 WHERE rs.thread_id = t.id AND rs.user_id = $1), 'epoch'::timestamptz)
			) AS unread
		FROM chat_threads t
		WHERE t.party_a=$1 OR t.party_b=$1 OR t.support_user_id=$1
		ORDER BY t.last_message_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ThreadSummary
	for rows.Next() {
		var s domain.ThreadSummary
		var ctxData []byte
		t := &s.Thread
		if err := rows.Scan(
			&t.ID, &t.ContextType, &t.ContextID, &t.PartyA, &t.PartyB, &t.SupportUserID,
			&t.ContextTitle, &ctxData, &t.Status, &t.CreatedAt, &t.UpdatedAt, &t.LastMessageAt,
			&s.UnreadCount,
		); err != nil {
			return nil, err
		}
		if len(ctxData) > 0 {
			_ = json.Unmarshal(ctxData, &t.ContextData)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
