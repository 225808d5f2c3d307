package delivery

import (
	"encoding/json"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

// Message is the wire form of a reset notice.
type Message struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newMessage(n goSession.ResetNotice) Message {
	return Message{
		UserID:    n.UserID,
		Username:  n.Username,
		Email:     n.Email,
		Token:     n.Token,
		ExpiresAt: n.ExpiresAt.UTC(),
	}
}

func encode(n goSession.ResetNotice) ([]byte, error) {
	return json.Marshal(newMessage(n))
}
