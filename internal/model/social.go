package model

import "time"

// Comment is a public note on a product listing.
type Comment struct {
	ID        uint64    // comments.id
	ProductID uint64    // comments.product_id
	UserID    uint64    // comments.user_id
	Body      string    // comments.body
	Edited    bool      // comments.edited
	CreatedAt time.Time // comments.created_at
	UpdatedAt time.Time // comments.updated_at
}

// Conversation is a private thread between a product owner and one
// interested user. There is at most one per (product, interested) pair.
type Conversation struct {
	ID           uint64    // conversations.id
	ProductID    uint64    // conversations.product_id
	OwnerID      uint64    // conversations.owner_id
	InterestedID uint64    // conversations.interested_id
	CreatedAt    time.Time // conversations.created_at
}

// IsParticipant reports whether userID belongs to the conversation.
func (c *Conversation) IsParticipant(userID uint64) bool {
	return userID == c.OwnerID || userID == c.InterestedID
}

// Message is a single entry in a conversation.
type Message struct {
	ID             uint64    // messages.id
	ConversationID uint64    // messages.conversation_id
	SenderID       uint64    // messages.sender_id
	Body           string    // messages.body
	Read           bool      // messages.is_read
	CreatedAt      time.Time // messages.created_at
}

// Report kinds and states.
const (
	ReportProduct = "product"
	ReportUser    = "user"
	ReportComment = "comment"

	ReportOpen      = "open"
	ReportReviewed  = "reviewed"
	ReportDismissed = "dismissed"
)

// Report is a moderation flag filed by a user against a product, another
// user or a comment. Exactly one target field is set, matching Kind.
type Report struct {
	ID         uint64    // reports.id
	ReporterID uint64    // reports.reporter_id
	Kind       string    // reports.kind
	ProductID  *uint64   // reports.product_id (nullable)
	UserID     *uint64   // reports.user_id (nullable)
	CommentID  *uint64   // reports.comment_id (nullable)
	Reason     string    // reports.reason
	Detail     string    // reports.detail
	Status     string    // reports.status
	CreatedAt  time.Time // reports.created_at
}
