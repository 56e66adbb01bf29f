package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/logger"
)

// PublicKeyLength is the size of an uncompressed P-256 point.
const PublicKeyLength = 65

type keySource interface {
	VapidPublicKey(ctx context.Context) (string, error)
}

// KeyProvisioner resolves the VAPID public key for each subscribe attempt.
// Nothing is cached so a rotated backend key is picked up on the next attempt.
type KeyProvisioner struct {
	source   keySource
	fallback string
	logger   *slog.Logger
}

func NewKeyProvisioner(source keySource, fallback string, log *slog.Logger) *KeyProvisioner {
	if log == nil {
		log = logger.Discard()
	}
	return &KeyProvisioner{source: source, fallback: fallback, logger: log}
}

// ResolvePublicKey returns the raw key bytes, preferring the backend and
// falling back to the configured key. A key of the wrong length is logged and
// returned anyway; the platform rejects it at subscribe time.
func (p *KeyProvisioner) ResolvePublicKey(ctx context.Context) ([]byte, error) {
	key := p.fallback
	if p.source != nil {
		remote, err := p.source.VapidPublicKey(ctx)
		if err != nil {
			p.logger.Warn("vapid key fetch failed, using fallback key", slog.Any("error", err))
		} else {
			key = remote
		}
	}

	raw, err := DecodeBase64URL(key)
	if err != nil {
		return nil, fmt.Errorf("decode vapid public key: %w", err)
	}
	if len(raw) != PublicKeyLength {
		p.logger.Warn("vapid public key has unexpected length",
			slog.Int("length", len(raw)),
			slog.Int("expected", PublicKeyLength),
		)
	}
	return raw, nil
}

// DecodeBase64URL decodes URL-safe base64 with or without padding.
func DecodeBase64URL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)
	return base64.StdEncoding.DecodeString(s)
}
