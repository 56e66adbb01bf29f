package client

import (
	"context"
	"testing"
	"time"

	"github.com/tuneldeltiempo/alienfood/services/push_service/internal/models"
	"github.com/tuneldeltiempo/alienfood/services/push_service/pkg/retry"
)

func TestCleaner_ResetAll(t *testing.T) {
	tests := []struct {
		name         string
		pm           *fakePushManager
		seed         bool
		want         bool
		wantUnsubbed int
		wantWait     time.Duration
	}{
		{
			name:     "nothing to clean",
			pm:       &fakePushManager{},
			want:     false,
			wantWait: 0,
		},
		{
			name:         "single stale subscription",
			pm:           &fakePushManager{},
			seed:         true,
			want:         true,
			wantUnsubbed: 1,
			wantWait:     time.Second + 2*time.Second,
		},
		{
			name:         "platform keeps recreating",
			pm:           &fakePushManager{recreate: true},
			seed:         true,
			want:         true,
			wantUnsubbed: 5,
			wantWait:     5*time.Second + 2*time.Second,
		},
		{
			name:     "query error ends quietly",
			pm:       &fakePushManager{queryErr: errPlatform},
			want:     false,
			wantWait: 0,
		},
		{
			name:     "unsubscribe error ends quietly",
			pm:       &fakePushManager{unsubErr: errPlatform},
			seed:     true,
			want:     false,
			wantWait: 2 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.seed {
				tt.pm.current = tt.pm.newSub()
			}
			sleeper := &recordingSleeper{}
			c := NewCleaner(&fakeWorker{pm: tt.pm}, retry.DefaultCleanupPolicy(), sleeper.Sleep, nil)

			if got := c.ResetAll(context.Background()); got != tt.want {
				t.Errorf("ResetAll() = %v, want %v", got, tt.want)
			}
			if len(tt.pm.unsubbed) != tt.wantUnsubbed {
				t.Errorf("unsubscribed %d times, want %d", len(tt.pm.unsubbed), tt.wantUnsubbed)
			}
			if got := sleeper.total(); got != tt.wantWait {
				t.Errorf("waited %v, want %v", got, tt.wantWait)
			}
			if sleeper.total() > retry.DefaultCleanupPolicy().Budget() {
				t.Errorf("waited %v, over budget", sleeper.total())
			}
			if tt.pm.queries > 5 {
				t.Errorf("queried %d times, want at most 5", tt.pm.queries)
			}
		})
	}
}

func TestCleaner_NoCapability(t *testing.T) {
	sleeper := &recordingSleeper{}
	if NewCleaner(nil, retry.FixedPolicy{}, sleeper.Sleep, nil).ResetAll(context.Background()) {
		t.Error("ResetAll() without a worker = true")
	}
	if NewCleaner(&fakeWorker{err: errPlatform}, retry.FixedPolicy{}, sleeper.Sleep, nil).ResetAll(context.Background()) {
		t.Error("ResetAll() with a failing worker = true")
	}
	if len(sleeper.waits) != 0 {
		t.Errorf("slept %d times without capability", len(sleeper.waits))
	}
}

func TestCleaner_CustomPolicy(t *testing.T) {
	pm := &fakePushManager{recreate: true}
	pm.current = pm.newSub()
	sleeper := &recordingSleeper{}
	policy := retry.FixedPolicy{MaxIterations: 2, Interval: 10 * time.Millisecond, Settle: 20 * time.Millisecond}

	if !NewCleaner(&fakeWorker{pm: pm}, policy, sleeper.Sleep, nil).ResetAll(context.Background()) {
		t.Fatal("ResetAll() = false")
	}
	if len(pm.unsubbed) != 2 {
		t.Errorf("unsubscribed %d times, want 2", len(pm.unsubbed))
	}
	if got := sleeper.total(); got != 40*time.Millisecond {
		t.Errorf("waited %v, want 40ms", got)
	}
}

func TestCleaner_ThenSubscribe(t *testing.T) {
	pm := &fakePushManager{}
	pm.current = pm.newSub()
	stale := pm.current.Endpoint
	sleeper := &recordingSleeper{}

	if !NewCleaner(&fakeWorker{pm: pm}, retry.DefaultCleanupPolicy(), sleeper.Sleep, nil).ResetAll(context.Background()) {
		t.Fatal("ResetAll() = false")
	}

	m, _ := newTestManager(t, pm)
	sub, err := m.Subscribe(context.Background(), models.Identity{})
	if err != nil {
		t.Fatalf("Subscribe() after cleanup error = %v", err)
	}
	if sub.Endpoint == stale {
		t.Error("Subscribe() reused the stale endpoint")
	}
}

func TestCleaner_NoWaitPolicy(t *testing.T) {
	pm := &fakePushManager{}
	pm.current = pm.newSub()
	sleeper := &recordingSleeper{}
	policy := retry.FixedPolicy{Interval: retry.NoWait, Settle: retry.NoWait}

	if !NewCleaner(&fakeWorker{pm: pm}, policy, sleeper.Sleep, nil).ResetAll(context.Background()) {
		t.Fatal("ResetAll() = false")
	}
	if got := sleeper.total(); got != 0 {
		t.Errorf("waited %v, want 0", got)
	}
}
