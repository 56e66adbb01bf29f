package config

import (
	"time"

	"github.com/joho/godotenv"

	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/retry"
)

// ClientConfig configures the subscription side: where the backend lives, the
// fallback key and the cleanup cooldowns.
type ClientConfig struct {
	BackendURL        string
	FallbackPublicKey string
	// Cleanup is left unnormalized; retry.NoWait marks a pause set to zero.
	Cleanup  retry.FixedPolicy
	LogLevel string
}

// LoadClient reads the client configuration. Nothing is required.
func LoadClient() *ClientConfig {
	_ = godotenv.Load()

	fallback := getEnv("VAPID_PUBLIC_KEY", "")
	if fallback == "" {
		fallback = FallbackVAPIDPublicKey
	}

	return &ClientConfig{
		BackendURL:        getEnv("PUSH_BACKEND_URL", DefaultBackendURL),
		FallbackPublicKey: fallback,
		Cleanup: retry.FixedPolicy{
			MaxIterations: getEnvAsInt("CLEANUP_MAX_ITERATIONS", 5),
			Interval:      getEnvAsWait("CLEANUP_INTERVAL", time.Second),
			Settle:        getEnvAsWait("CLEANUP_SETTLE", 2*time.Second),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// getEnvAsWait reads a pause length where an explicit zero means no pause.
func getEnvAsWait(key string, def time.Duration) time.Duration {
	d := getEnvAsDuration(key, def)
	if d == 0 {
		return retry.NoWait
	}
	return d
}
