package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultMaxTurns bounds how much history is replayed to the model.
const DefaultMaxTurns = 20

// Conversation is the chat history of one caller, keyed by userDetails.
type Conversation struct {
	UserDetails string    `json:"user_details"`
	Turns       []Turn    `json:"turns,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

func NewConversation(userDetails string, now time.Time) *Conversation {
	return &Conversation{
		UserDetails: strings.TrimSpace(userDetails),
		UpdatedAt:   now.UTC(),
	}
}

// Append adds a turn and drops the oldest ones beyond maxTurns. maxTurns <= 0 keeps everything.
func (c *Conversation) Append(role Role, content string, now time.Time, maxTurns int) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}
	c.Turns = append(c.Turns, Turn{Role: role, Content: content, At: now.UTC()})
	if maxTurns > 0 && len(c.Turns) > maxTurns {
		c.Turns = append([]Turn(nil), c.Turns[len(c.Turns)-maxTurns:]...)
	}
	c.UpdatedAt = now.UTC()
}

func (c *Conversation) Validate() error {
	if c == nil {
		return ErrNilConversation
	}
	if strings.TrimSpace(c.UserDetails) == "" {
		return ErrInvalidUser
	}
	for i, t := range c.Turns {
		if t.Role != RoleUser && t.Role != RoleAssistant {
			return fmt.Errorf("turn %d: unknown role %q", i, t.Role)
		}
	}
	return nil
}

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNilConversation      = errors.New("conversation is nil")
	ErrInvalidUser          = errors.New("user details are empty")
)
