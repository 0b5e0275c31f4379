package repository

import (
	"context"
	"database/sql"

	"github.com/davidromero/mercadillo/internal/model"
)

// ConversationRepo persists private threads between a product owner and an
// interested user, and their messages.
type ConversationRepo struct{ db *sql.DB }

func NewConversationRepo(db *sql.DB) *ConversationRepo { return &ConversationRepo{db: db} }

// GetOrCreate returns the conversation for (product, interested), creating
// it when absent. The unique key absorbs the create race: on a duplicate
// the existing row is fetched and returned.
func (r *ConversationRepo) GetOrCreate(ctx context.Context, productID, ownerID, interestedID uint64) (model.Conversation, bool, error) {
	if c, err := r.getByProductAndInterested(ctx, productID, interestedID); err == nil {
		return c, false, nil
	} else if err != ErrNotFound {
		return model.Conversation{}, false, err
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO conversations (product_id, owner_id, interested_id) VALUES (?,?,?)",
		productID, ownerID, interestedID)
	if err != nil {
		if isDuplicateKey(err) {
			c, err := r.getByProductAndInterested(ctx, productID, interestedID)
			return c, false, err
		}
		return model.Conversation{}, false, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Conversation{}, false, err
	}
	c, err := r.GetByID(ctx, uint64(id))
	return c, true, err
}

func (r *ConversationRepo) getByProductAndInterested(ctx context.Context, productID, interestedID uint64) (model.Conversation, error) {
	return scanConversation(r.db.QueryRowContext(ctx,
		"SELECT id,product_id,owner_id,interested_id,created_at FROM conversations WHERE product_id=? AND interested_id=? LIMIT 1",
		productID, interestedID))
}

// GetByID fetches a conversation.
func (r *ConversationRepo) GetByID(ctx context.Context, id uint64) (model.Conversation, error) {
	return scanConversation(r.db.QueryRowContext(ctx,
		"SELECT id,product_id,owner_id,interested_id,created_at FROM conversations WHERE id=? LIMIT 1", id))
}

func scanConversation(row *sql.Row) (model.Conversation, error) {
	var c model.Conversation
	err := row.Scan(&c.ID, &c.ProductID, &c.OwnerID, &c.InterestedID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// ListByUser returns the conversations the user participates in, newest
// first.
func (r *ConversationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Conversation, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id,product_id,owner_id,interested_id,created_at FROM conversations WHERE owner_id=? OR interested_id=? ORDER BY created_at DESC",
		userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Conversation
	for rows.Next() {
		var c model.Conversation
		if err := rows.Scan(&c.ID, &c.ProductID, &c.OwnerID, &c.InterestedID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AddMessage appends a message to a conversation.
func (r *ConversationRepo) AddMessage(ctx context.Context, conversationID, senderID uint64, body string) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO messages (conversation_id, sender_id, body) VALUES (?,?,?)",
		conversationID, senderID, body)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// ListMessages returns a conversation's messages oldest first and marks
// the messages sent by the other party as read.
func (r *ConversationRepo) ListMessages(ctx context.Context, conversationID, readerID uint64) ([]model.Message, error) {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE messages SET is_read=1 WHERE conversation_id=? AND sender_id<>? AND is_read=0",
		conversationID, readerID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id,conversation_id,sender_id,body,is_read,created_at FROM messages WHERE conversation_id=? ORDER BY created_at",
		conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.Read, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
