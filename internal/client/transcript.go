package client

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"

	"handbook-chat/internal/domain"
)

const (
	WelcomeMessage     = "Welcome! I'm your Crypto Alchemist Assistant. Ask me anything about crypto, or start with one of the popular questions below."
	WelcomeBackMessage = "Welcome back! I'm ready to assist. You can ask me anything, or start with one of the popular questions below."
	FallbackMessage    = "I'm sorry, I encountered an error. Please try again."
)

var (
	ErrEmptyPrompt = errors.New("client: prompt is empty")
	ErrBusy        = errors.New("client: a reply is still streaming")
)

// Asker streams the reply to a prompt.
type Asker interface {
	Ask(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// Transcript is the ordered conversation shown to a user. Only the newest AI
// message is edited, and only while its reply streams.
type Transcript struct {
	asker Asker

	mu       sync.Mutex
	messages []*domain.ChatMessage
	busy     bool
}

func NewTranscript(asker Asker) *Transcript {
	t := &Transcript{asker: asker}
	t.reset(WelcomeMessage)
	return t
}

// Messages returns a snapshot of the conversation.
func (t *Transcript) Messages() []domain.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.ChatMessage, len(t.messages))
	for i, m := range t.messages {
		out[i] = *m
	}
	return out
}

// Restart clears the conversation down to a single welcome-back message.
func (t *Transcript) Restart() {
	t.reset(WelcomeBackMessage)
}

func (t *Transcript) reset(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = []*domain.ChatMessage{domain.NewAIMessage(text)}
}

// Send appends the user's prompt and an AI placeholder, then grows the
// placeholder with each fragment. onUpdate, when set, sees the AI message
// after every change. On failure the placeholder text is replaced with a
// message fit for display and the error is returned.
func (t *Transcript) Send(ctx context.Context, prompt string, onUpdate func(domain.ChatMessage)) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}

	t.mu.Lock()
	if t.busy {
		t.mu.Unlock()
		return ErrBusy
	}
	t.busy = true
	reply := domain.NewAIMessage("")
	t.messages = append(t.messages, domain.NewUserMessage(prompt), reply)
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.busy = false
		t.mu.Unlock()
	}()

	notify := func() {
		if onUpdate == nil {
			return
		}
		t.mu.Lock()
		snapshot := *reply
		t.mu.Unlock()
		onUpdate(snapshot)
	}

	for fragment, err := range t.asker.Ask(ctx, prompt) {
		if err != nil {
			t.mu.Lock()
			_ = reply.Replace(displayMessage(err))
			t.mu.Unlock()
			notify()
			return err
		}
		t.mu.Lock()
		_ = reply.Append(fragment)
		t.mu.Unlock()
		notify()
	}
	return nil
}

func displayMessage(err error) string {
	var re *ResponseError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return FallbackMessage
}
