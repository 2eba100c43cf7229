package telegram

// Update is one inbound event from the Bot API. Only the message shape is
// modeled; any payload that does not carry a text message classifies as
// UpdateOther and is acknowledged and ignored, never errored.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message is a chat message inside an update.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
}

// User is the message sender.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Chat identifies where a message was sent.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// UpdateKind classifies an update for routing.
type UpdateKind int

const (
	// UpdateTextMessage is a message update carrying non-empty text.
	UpdateTextMessage UpdateKind = iota
	// UpdateOther is any other update shape (stickers, photos, edits,
	// callback queries, unknown future types).
	UpdateOther
)

// Kind classifies the update.
func (u Update) Kind() UpdateKind {
	if u.Message != nil && u.Message.Text != "" {
		return UpdateTextMessage
	}
	return UpdateOther
}
