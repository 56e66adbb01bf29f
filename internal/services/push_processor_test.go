package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/models"
	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/repository"
	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/logger"
	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/metrics"
	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/retry"
)

type fakeSource struct {
	byUser  map[string][]repository.SubscriptionRecord
	listErr error
	deleted []string
}

func (f *fakeSource) ListByUser(_ context.Context, userID string) ([]repository.SubscriptionRecord, error) {
	return f.byUser[userID], f.listErr
}

func (f *fakeSource) ListAll(context.Context) ([]repository.SubscriptionRecord, error) {
	var all []repository.SubscriptionRecord
	for _, recs := range f.byUser {
		all = append(all, recs...)
	}
	return all, f.listErr
}

func (f *fakeSource) DeleteByEndpoint(_ context.Context, endpoint string) error {
	f.deleted = append(f.deleted, endpoint)
	return nil
}

type fakeSuppressor struct {
	suppressed map[string]bool
}

func (f *fakeSuppressor) IsSuppressed(_ context.Context, endpoint string) (bool, error) {
	return f.suppressed[endpoint], nil
}

func (f *fakeSuppressor) Suppress(_ context.Context, endpoint string, _ time.Duration) error {
	f.suppressed[endpoint] = true
	return nil
}

type fakeStatusStore struct {
	mu       sync.Mutex
	statuses []repository.NotificationStatus
}

func (f *fakeStatusStore) UpdateStatus(_ context.Context, ns repository.NotificationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, ns)
	return nil
}

func (f *fakeStatusStore) last() repository.NotificationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return repository.NotificationStatus{}
	}
	return f.statuses[len(f.statuses)-1]
}

// scriptedProvider answers per endpoint with a queue of outcomes.
type scriptedProvider struct {
	mu       sync.Mutex
	script   map[string][]outcome
	payloads [][]byte
	calls    map[string]int
}

type outcome struct {
	status string
	code   int
	err    error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Send(_ context.Context, sub models.PushSubscription, payload []byte) (models.PushResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[sub.Endpoint]++
	p.payloads = append(p.payloads, payload)

	queue := p.script[sub.Endpoint]
	o := outcome{status: models.ResultDelivered, code: 201}
	if len(queue) > 0 {
		o = queue[0]
		p.script[sub.Endpoint] = queue[1:]
	}
	return models.PushResult{Endpoint: sub.Endpoint, Provider: p.Name(), Status: o.status, StatusCode: o.code}, o.err
}

func rec(endpoint, user string) repository.SubscriptionRecord {
	return repository.SubscriptionRecord{Endpoint: endpoint, P256dh: "p", Auth: "a", UserID: user}
}

type harness struct {
	source   *fakeSource
	cache    *fakeSuppressor
	statuses *fakeStatusStore
	provider *scriptedProvider
	proc     *PushProcessor
}

func newHarness() *harness {
	h := &harness{
		source: &fakeSource{byUser: map[string][]repository.SubscriptionRecord{
			"ana": {rec("https://push.example/ana-phone", "ana"), rec("https://push.example/ana-laptop", "ana")},
			"leo": {rec("https://push.example/leo", "leo")},
		}},
		cache:    &fakeSuppressor{suppressed: map[string]bool{}},
		statuses: &fakeStatusStore{},
		provider: &scriptedProvider{script: map[string][]outcome{}},
	}
	log := logger.Discard()
	h.proc = NewPushProcessor(
		h.source,
		h.provider,
		NewStatusUpdater(h.statuses, log),
		h.cache,
		metrics.New(),
		log,
		retry.Config{
			MaxAttempts: 3,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		},
	)
	return h
}

func shipped(user string) *models.MessageEnvelope {
	return &models.MessageEnvelope{
		RequestID: "req-" + user,
		Channel:   "push",
		UserID:    user,
		Event:     EventOrderShipped,
		Variables: map[string]interface{}{"order_id": 123},
		URL:       "/orders/123",
	}
}

func TestProcess_DeliversToEverySubscription(t *testing.T) {
	h := newHarness()

	if err := h.proc.Process(context.Background(), shipped("ana")); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(h.provider.payloads) != 2 {
		t.Fatalf("sent %d payloads, want 2", len(h.provider.payloads))
	}

	var p models.NotificationPayload
	if err := json.Unmarshal(h.provider.payloads[0], &p); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if p.Title != "Order Shipped" || p.Body != "Your order #123 is on the way" || p.Data["url"] != "/orders/123" {
		t.Errorf("payload = %+v", p)
	}

	last := h.statuses.last()
	if last.Status != StatusDelivered || last.Sent != 2 || last.Failed != 0 {
		t.Errorf("status = %+v", last)
	}
}

func TestProcess_GoneEndpointRemovedAndSuppressed(t *testing.T) {
	h := newHarness()
	h.provider.script["https://push.example/ana-phone"] = []outcome{{status: models.ResultGone, code: 410}}

	if err := h.proc.Process(context.Background(), shipped("ana")); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(h.source.deleted) != 1 || h.source.deleted[0] != "https://push.example/ana-phone" {
		t.Errorf("deleted = %v", h.source.deleted)
	}
	if !h.cache.suppressed["https://push.example/ana-phone"] {
		t.Error("gone endpoint not suppressed")
	}
	if h.provider.calls["https://push.example/ana-phone"] != 1 {
		t.Errorf("gone endpoint retried %d times", h.provider.calls["https://push.example/ana-phone"])
	}
	if last := h.statuses.last(); last.Status != StatusDelivered || last.Sent != 1 {
		t.Errorf("status = %+v", last)
	}

	// The suppressed endpoint is skipped on the next event.
	h.provider.payloads = nil
	if err := h.proc.Process(context.Background(), shipped("ana")); err != nil {
		t.Fatalf("second Process() error = %v", err)
	}
	if len(h.provider.payloads) != 1 {
		t.Errorf("second event sent %d payloads, want 1", len(h.provider.payloads))
	}
}

func TestProcess_TransientErrorRetried(t *testing.T) {
	h := newHarness()
	flaky := errors.New("503 from push service")
	h.provider.script["https://push.example/leo"] = []outcome{
		{status: models.ResultFailed, err: flaky},
		{status: models.ResultFailed, err: flaky},
	}

	if err := h.proc.Process(context.Background(), shipped("leo")); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := h.provider.calls["https://push.example/leo"]; got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestProcess_AllFailReturnsError(t *testing.T) {
	h := newHarness()
	flaky := errors.New("timeout")
	h.provider.script["https://push.example/leo"] = []outcome{
		{status: models.ResultFailed, err: flaky},
		{status: models.ResultFailed, err: flaky},
		{status: models.ResultFailed, err: flaky},
	}

	err := h.proc.Process(context.Background(), shipped("leo"))
	if !errors.Is(err, flaky) {
		t.Fatalf("Process() error = %v, want %v", err, flaky)
	}
	if retry.IsPermanent(err) {
		t.Error("transient failure marked permanent")
	}
	if last := h.statuses.last(); last.Status != StatusFailed || last.Failed != 1 {
		t.Errorf("status = %+v", last)
	}
}

func TestProcess_PermanentCases(t *testing.T) {
	tests := []struct {
		name string
		env  *models.MessageEnvelope
	}{
		{"unknown event", &models.MessageEnvelope{UserID: "ana", Event: "order.teleported"}},
		{"wrong channel", &models.MessageEnvelope{UserID: "ana", Channel: "email", Event: EventOrderShipped}},
		{"no target", &models.MessageEnvelope{Event: EventOrderShipped}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			err := h.proc.Process(context.Background(), tt.env)
			if !retry.IsPermanent(err) {
				t.Fatalf("Process() error = %v, want permanent", err)
			}
			if len(h.provider.payloads) != 0 {
				t.Errorf("sent %d payloads", len(h.provider.payloads))
			}
		})
	}
}

func TestProcess_NoSubscriptionsSkipped(t *testing.T) {
	h := newHarness()
	env := shipped("nobody")
	if err := h.proc.Process(context.Background(), env); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if last := h.statuses.last(); last.Status != StatusSkipped {
		t.Errorf("status = %+v, want skipped", last)
	}
}

func TestProcess_Broadcast(t *testing.T) {
	h := newHarness()
	env := &models.MessageEnvelope{
		Broadcast: true,
		Event:     EventDishNew,
		Variables: map[string]interface{}{"dish_name": "Taco Marciano", "category": "Antojitos"},
	}
	if err := h.proc.Process(context.Background(), env); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(h.provider.payloads) != 3 {
		t.Errorf("broadcast sent %d payloads, want 3", len(h.provider.payloads))
	}
	if env.RequestID == "" {
		t.Error("request id not assigned")
	}
}

func TestProcess_RejectedEverywhereIsPermanent(t *testing.T) {
	h := newHarness()
	h.provider.script["https://push.example/leo"] = []outcome{{status: models.ResultFailed, code: 403}}

	err := h.proc.Process(context.Background(), shipped("leo"))
	if !retry.IsPermanent(err) {
		t.Fatalf("Process() error = %v, want permanent", err)
	}
	if got := h.provider.calls["https://push.example/leo"]; got != 1 {
		t.Errorf("rejected endpoint sent %d times, want 1", got)
	}
	if last := h.statuses.last(); last.Status != StatusFailed || last.Failed != 1 {
		t.Errorf("status = %+v", last)
	}
}

func TestProcess_MixedFailuresStayRetryable(t *testing.T) {
	h := newHarness()
	flaky := errors.New("503 from push service")
	h.provider.script["https://push.example/ana-phone"] = []outcome{{status: models.ResultFailed, code: 400}}
	h.provider.script["https://push.example/ana-laptop"] = []outcome{
		{status: models.ResultFailed, err: flaky},
		{status: models.ResultFailed, err: flaky},
		{status: models.ResultFailed, err: flaky},
	}

	err := h.proc.Process(context.Background(), shipped("ana"))
	if err == nil || retry.IsPermanent(err) {
		t.Fatalf("Process() error = %v, want a retryable error", err)
	}
	if !errors.Is(err, flaky) {
		t.Errorf("Process() error = %v, want it to carry %v", err, flaky)
	}
}
