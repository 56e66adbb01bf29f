package models

import "time"

// MessageEnvelope is an order/status event published by the storefront and consumed by the push service.
type MessageEnvelope struct {
	RequestID string                 `json:"request_id"`
	CreatedAt time.Time              `json:"created_at"`
	Channel   string                 `json:"channel"`
	UserID    string                 `json:"user_id"`
	Broadcast bool                   `json:"broadcast"`
	Event     string                 `json:"event"`
	Variables map[string]interface{} `json:"variables"`
	URL       string                 `json:"url,omitempty"`
	Icon      string                 `json:"icon,omitempty"`
	Tag       string                 `json:"tag,omitempty"`
}

// Template is a title/body pair with {{key}} placeholders.
type Template struct {
	Event string
	Title string
	Body  string
}
