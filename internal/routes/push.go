package routes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/models"
	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/repository"
	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/metrics"
)

const maxBodyBytes = 16 << 10

// SubscriptionStore is the persistence the push handlers need.
type SubscriptionStore interface {
	Save(ctx context.Context, rec *repository.SubscriptionRecord) error
	GetByEndpoint(ctx context.Context, endpoint string) (*repository.SubscriptionRecord, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// EndpointReleaser clears a gone-endpoint mark when a client re-subscribes it. Optional.
type EndpointReleaser interface {
	Release(ctx context.Context, endpoint string) error
}

// PushHandler serves the endpoints the subscription client talks to.
type PushHandler struct {
	store     SubscriptionStore
	releaser  EndpointReleaser
	publicKey string
	metrics   *metrics.Metrics
	logger    *slog.Logger
	validate  *validator.Validate
}

func NewPushHandler(store SubscriptionStore, releaser EndpointReleaser, publicKey string, m *metrics.Metrics, logger *slog.Logger) *PushHandler {
	return &PushHandler{
		store:     store,
		releaser:  releaser,
		publicKey: publicKey,
		metrics:   m,
		logger:    logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// VapidKey answers GET /push/vapid with the bare {"publicKey": ...} object.
func (h *PushHandler) VapidKey(w http.ResponseWriter, r *http.Request) {
	if h.publicKey == "" {
		writeJSON(w, http.StatusServiceUnavailable, models.ResponseEnvelope{Message: "vapid key not configured", Error: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, models.VapidKeyResponse{PublicKey: h.publicKey})
}

// Subscribe answers POST /push/subscribe.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req models.SubscribeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.metrics.IncSubscription("subscribe", "invalid")
		writeJSON(w, http.StatusBadRequest, models.ResponseEnvelope{Message: "invalid subscription", Error: err.Error()})
		return
	}

	rec := repository.NewSubscriptionRecord(req, h.publicKey)
	if err := h.store.Save(r.Context(), rec); err != nil {
		h.metrics.IncSubscription("subscribe", "error")
		h.logger.Error("failed to save subscription", slog.String("endpoint", models.ShortEndpoint(rec.Endpoint)), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, models.ResponseEnvelope{Message: "could not save subscription", Error: "internal"})
		return
	}
	if h.releaser != nil {
		if err := h.releaser.Release(r.Context(), rec.Endpoint); err != nil {
			h.logger.Warn("failed to release endpoint", slog.String("endpoint", models.ShortEndpoint(rec.Endpoint)), slog.Any("error", err))
		}
	}

	// An upsert on a known endpoint keeps the stored row id.
	var data interface{}
	if saved, err := h.store.GetByEndpoint(r.Context(), rec.Endpoint); err == nil {
		data = map[string]string{"id": saved.ID}
	} else {
		h.logger.Warn("failed to read back subscription", slog.String("endpoint", models.ShortEndpoint(rec.Endpoint)), slog.Any("error", err))
	}

	h.metrics.IncSubscription("subscribe", "ok")
	h.logger.Info("subscription saved", slog.String("endpoint", models.ShortEndpoint(rec.Endpoint)), slog.String("user_id", rec.UserID))
	writeJSON(w, http.StatusCreated, models.ResponseEnvelope{Success: true, Message: "subscribed", Data: data})
}

// Unsubscribe answers POST /push/unsubscribe. Unknown endpoints succeed.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req models.UnsubscribeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.metrics.IncSubscription("unsubscribe", "invalid")
		writeJSON(w, http.StatusBadRequest, models.ResponseEnvelope{Message: "invalid request", Error: err.Error()})
		return
	}

	if _, err := h.store.GetByEndpoint(r.Context(), req.Endpoint); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			h.metrics.IncSubscription("unsubscribe", "not_found")
			writeJSON(w, http.StatusOK, models.ResponseEnvelope{Success: true, Message: "already unsubscribed"})
			return
		}
		h.metrics.IncSubscription("unsubscribe", "error")
		h.logger.Error("failed to look up subscription", slog.String("endpoint", models.ShortEndpoint(req.Endpoint)), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, models.ResponseEnvelope{Message: "could not delete subscription", Error: "internal"})
		return
	}

	if err := h.store.DeleteByEndpoint(r.Context(), req.Endpoint); err != nil {
		h.metrics.IncSubscription("unsubscribe", "error")
		h.logger.Error("failed to delete subscription", slog.String("endpoint", models.ShortEndpoint(req.Endpoint)), slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, models.ResponseEnvelope{Message: "could not delete subscription", Error: "internal"})
		return
	}

	h.metrics.IncSubscription("unsubscribe", "ok")
	writeJSON(w, http.StatusOK, models.ResponseEnvelope{Success: true, Message: "unsubscribed"})
}

func (h *PushHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return errors.New("content type must be application/json")
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return errors.New("malformed json body")
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+" "+fe.Tag())
			}
			return errors.New("validation failed: " + strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
