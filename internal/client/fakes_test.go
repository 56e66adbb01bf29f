package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/models"
)

type fakeCenter struct {
	supported bool
	state     Permission
	answer    Permission
	err       error
	prompts   int
}

func (f *fakeCenter) Supported() bool        { return f.supported }
func (f *fakeCenter) Permission() Permission { return f.state }
func (f *fakeCenter) RequestPermission(context.Context) (Permission, error) {
	f.prompts++
	return f.answer, f.err
}

type fakeWorker struct {
	pm  PushManager
	err error
}

func (w *fakeWorker) Ready(context.Context) (PushManager, error) {
	return w.pm, w.err
}

// fakePushManager holds one subscription slot like the platform does.
type fakePushManager struct {
	mu        sync.Mutex
	current   *models.PushSubscription
	seq       int
	lastOpts  SubscribeOptions
	subErr    error
	queryErr  error
	unsubErr  error
	recreate  bool // a faulty platform that immediately issues a new subscription
	unsubbed  []string
	queries   int
	subscribe int
}

func (f *fakePushManager) Subscription(context.Context) (*models.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.current, nil
}

func (f *fakePushManager) Subscribe(_ context.Context, opts SubscribeOptions) (*models.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribe++
	f.lastOpts = opts
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.current = f.newSub()
	return f.current, nil
}

func (f *fakePushManager) Unsubscribe(_ context.Context, endpoint string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unsubErr != nil {
		return false, f.unsubErr
	}
	if f.current == nil || f.current.Endpoint != endpoint {
		return false, nil
	}
	f.unsubbed = append(f.unsubbed, endpoint)
	f.current = nil
	if f.recreate {
		f.current = f.newSub()
	}
	return true, nil
}

func (f *fakePushManager) newSub() *models.PushSubscription {
	f.seq++
	return &models.PushSubscription{
		Endpoint: fmt.Sprintf("https://fcm.googleapis.com/fcm/send/device-%d", f.seq),
		Keys:     models.Keys{P256dh: "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM", Auth: "tBHItJI5svbpez7KI4CCXg"},
	}
}

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

// fakeBackend records /push/* calls and answers with configurable statuses.
type fakeBackend struct {
	mu                sync.Mutex
	requests          []recordedRequest
	vapidStatus       int
	vapidKey          string
	subscribeStatus   int
	unsubscribeStatus int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		vapidStatus:       http.StatusOK,
		subscribeStatus:   http.StatusCreated,
		unsubscribeStatus: http.StatusOK,
	}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&rec.Body)
	}
	b.mu.Lock()
	b.requests = append(b.requests, rec)
	b.mu.Unlock()

	switch r.URL.Path {
	case "/push/vapid":
		if b.vapidStatus != http.StatusOK {
			w.WriteHeader(b.vapidStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.VapidKeyResponse{PublicKey: b.vapidKey})
	case "/push/subscribe":
		w.WriteHeader(b.subscribeStatus)
	case "/push/unsubscribe":
		w.WriteHeader(b.unsubscribeStatus)
	default:
		http.NotFound(w, r)
	}
}

func (b *fakeBackend) calls(path string) []recordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []recordedRequest
	for _, r := range b.requests {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func startBackend() (*fakeBackend, *httptest.Server) {
	fb := newFakeBackend()
	return fb, httptest.NewServer(fb)
}

type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func (s *recordingSleeper) total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum time.Duration
	for _, w := range s.waits {
		sum += w
	}
	return sum
}

var errPlatform = errors.New("platform exploded")
