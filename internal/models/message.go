package models

// ReplyRef is a denormalized snapshot of the message being replied to.
// It stays renderable even after the original message is deleted.
type ReplyRef struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Name string `json:"name"`
}

// FileRef points at an uploaded file; the service never stores file bytes.
type FileRef struct {
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	FileURL  string `json:"fileUrl"`
}

// Message represents a chat message. IDs are client-generated so that
// optimistic sends and retries stay idempotent.
type Message struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	Name       string    `json:"name"`
	Text       string    `json:"text,omitempty"`
	Ts         int64     `json:"ts"`
	ReplyTo    *ReplyRef `json:"replyTo,omitempty"`
	File       *FileRef  `json:"file,omitempty"`
	DeletedFor []string  `json:"deletedFor,omitempty"`
}

// HasContent reports whether the message carries text or a file reference.
func (m Message) HasContent() bool {
	return m.Text != "" || m.File != nil
}

// DeletedForAccount reports whether the message is hidden for the account.
func (m Message) DeletedForAccount(accountID string) bool {
	for _, id := range m.DeletedFor {
		if id == accountID {
			return true
		}
	}
	return false
}

// VisibleTo filters a history down to the messages the account may see.
// The stored log is append-only; deletion is purely a view filter.
func VisibleTo(history []Message, accountID string) []Message {
	visible := make([]Message, 0, len(history))
	for _, m := range history {
		if m.DeletedForAccount(accountID) {
			continue
		}
		visible = append(visible, m)
	}
	return visible
}
