package domain

import (
	"errors"

	"github.com/google/uuid"
)

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

var ErrImmutableMessage = errors.New("domain: only ai messages accept appended text")

// ChatMessage is a single transcript entry. Sender is fixed at creation and
// only ai messages grow while a reply is streaming in.
type ChatMessage struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
}

func NewUserMessage(text string) *ChatMessage {
	return &ChatMessage{ID: uuid.NewString(), Text: text, Sender: SenderUser}
}

func NewAIMessage(text string) *ChatMessage {
	return &ChatMessage{ID: uuid.NewString(), Text: text, Sender: SenderAI}
}

func (m *ChatMessage) Append(fragment string) error {
	if m.Sender != SenderAI {
		return ErrImmutableMessage
	}
	m.Text += fragment
	return nil
}

// Replace swaps the whole text of an ai message, used when a stream fails.
func (m *ChatMessage) Replace(text string) error {
	if m.Sender != SenderAI {
		return ErrImmutableMessage
	}
	m.Text = text
	return nil
}
