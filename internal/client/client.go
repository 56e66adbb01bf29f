package client

import (
	"log/slog"
	"net/http"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/config"
	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/logger"
	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/retry"
)

// Client bundles the subscription components built from one configuration.
type Client struct {
	Permissions *PermissionGate
	Backend     *Backend
	Keys        *KeyProvisioner
	Manager     *Manager
	Cleaner     *Cleaner
}

// New wires a Client from cfg. A nil log gets a logger at cfg.LogLevel and a
// nil httpClient leaves timeouts to the transport.
func New(cfg *config.ClientConfig, center NotificationCenter, worker ServiceWorker, httpClient *http.Client, log *slog.Logger) *Client {
	if log == nil {
		log = logger.New(cfg.LogLevel)
	}
	backend := NewBackend(cfg.BackendURL, httpClient)
	keys := NewKeyProvisioner(backend, cfg.FallbackPublicKey, log)
	return &Client{
		Permissions: NewPermissionGate(center, log),
		Backend:     backend,
		Keys:        keys,
		Manager:     NewManager(worker, keys, backend, log),
		Cleaner:     NewCleaner(worker, cfg.Cleanup, retry.TimerSleep, log),
	}
}
