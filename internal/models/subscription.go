package models

import (
	"strings"
	"time"
)

// Keys carries the client encryption material of a push subscription.
type Keys struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth" validate:"required"`
}

// PushSubscription is the platform-issued binding between a client installation and a push endpoint.
type PushSubscription struct {
	Endpoint       string     `json:"endpoint" validate:"required,url"`
	ExpirationTime *time.Time `json:"expirationTime,omitempty"`
	Keys           Keys       `json:"keys" validate:"required"`
}

// Identity is the optional session identity attached to subscribe/unsubscribe calls.
type Identity struct {
	UserID   string
	Username string
}

// SubscribeRequest is the body sent to POST /push/subscribe.
type SubscribeRequest struct {
	Subscription PushSubscription `json:"subscription" validate:"required"`
	UserID       *string          `json:"userId"`
	Username     *string          `json:"username"`
}

// UnsubscribeRequest is the body sent to POST /push/unsubscribe.
type UnsubscribeRequest struct {
	Endpoint string  `json:"endpoint" validate:"required"`
	UserID   *string `json:"userId"`
}

// VapidKeyResponse is returned by GET /push/vapid.
type VapidKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// ShortEndpoint trims an endpoint for log output; push endpoints embed long opaque tokens.
func ShortEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if len(endpoint) <= 50 {
		return endpoint
	}
	return endpoint[:50] + "..."
}

// optional returns nil for empty strings so absent identity fields marshal as null.
func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// NewSubscribeRequest builds the backend body for a fresh subscription.
func NewSubscribeRequest(sub PushSubscription, id Identity) SubscribeRequest {
	return SubscribeRequest{
		Subscription: sub,
		UserID:       optional(id.UserID),
		Username:     optional(id.Username),
	}
}

// NewUnsubscribeRequest builds the backend body for a removed endpoint.
func NewUnsubscribeRequest(endpoint string, id Identity) UnsubscribeRequest {
	return UnsubscribeRequest{
		Endpoint: endpoint,
		UserID:   optional(id.UserID),
	}
}
