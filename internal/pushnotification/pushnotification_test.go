package pushnotification

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/taskcadence/internal/config"
	"github.com/kazz187/taskcadence/internal/eventbus"
	"github.com/kazz187/taskcadence/internal/pushsubscription"
	"github.com/kazz187/taskcadence/internal/pushsubscription/repositoryimpl"
	"github.com/kazz187/taskcadence/pkg/cerr"
	"github.com/kazz187/taskcadence/pkg/docstore"
	"github.com/kazz187/taskcadence/pkg/docstore/yamlstore"
	"github.com/kazz187/taskcadence/pkg/storage"
)

var vapid = &config.VAPIDEnv{VAPIDPublicKey: "pub", VAPIDPrivateKey: "priv", VAPIDContact: "mailto:a@b"}

func newSubRepo(t *testing.T) *repositoryimpl.DocstoreRepository {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return repositoryimpl.NewDocstoreRepository(docstore.New(yamlstore.New(s)))
}

func respond(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

func TestSendToUser(t *testing.T) {
	ctx := context.Background()
	repo := newSubRepo(t)
	for _, ep := range []string{"https://push/ok", "https://push/gone", "https://push/bad"} {
		require.NoError(t, repo.Save(ctx, &pushsubscription.Subscription{UserID: "u1", Endpoint: ep}))
	}
	require.NoError(t, repo.Save(ctx, &pushsubscription.Subscription{UserID: "u2", Endpoint: "https://push/other"}))

	var mu sync.Mutex
	var endpoints []string
	s := NewSender(vapid, repo)
	s.send = func(_ []byte, sub *webpush.Subscription, _ *webpush.Options) (*http.Response, error) {
		mu.Lock()
		endpoints = append(endpoints, sub.Endpoint)
		mu.Unlock()
		switch sub.Endpoint {
		case "https://push/gone":
			return respond(http.StatusGone), nil
		case "https://push/bad":
			return nil, errors.New("connection reset")
		}
		return respond(http.StatusCreated), nil
	}

	assert.Equal(t, 1, s.SendToUser(ctx, "u1", &NotificationPayload{Title: "t", Body: "b"}))
	assert.ElementsMatch(t, []string{"https://push/ok", "https://push/gone", "https://push/bad"}, endpoints)

	_, err := repo.FindByEndpoint(ctx, "https://push/gone")
	assert.True(t, cerr.IsCode(err, cerr.NotFound), "gone subscriptions are removed")
	_, err = repo.FindByEndpoint(ctx, "https://push/bad")
	assert.NoError(t, err)
}

func TestSendToUserSkipsWithoutVAPID(t *testing.T) {
	s := NewSender(&config.VAPIDEnv{}, newSubRepo(t))
	s.send = func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
		t.Fatal("send must not be called")
		return nil, nil
	}
	assert.Equal(t, 0, s.SendToUser(context.Background(), "u1", &NotificationPayload{}))
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	ctx := context.Background()
	repo := newSubRepo(t)
	require.NoError(t, repo.Save(ctx, &pushsubscription.Subscription{UserID: "u1", Endpoint: "https://push/down"}))

	calls := 0
	s := NewSender(vapid, repo)
	s.send = func([]byte, *webpush.Subscription, *webpush.Options) (*http.Response, error) {
		calls++
		return respond(http.StatusServiceUnavailable), nil
	}
	for range 10 {
		s.SendToUser(ctx, "u1", &NotificationPayload{})
	}
	assert.Equal(t, 6, calls, "breaker stops calling after it trips")
}

type recordingSender struct {
	mu    sync.Mutex
	users []string
	sent  []*NotificationPayload
}

func (r *recordingSender) SendToUser(_ context.Context, userID string, p *NotificationPayload) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
	r.sent = append(r.sent, p)
	return 1
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestDispatcherForwardsNotifications(t *testing.T) {
	bus := eventbus.New()
	rec := &recordingSender{}
	d := NewDispatcher(bus, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return bus.Publish(eventbus.Event{Type: eventbus.DeadlineScanned}) == 1
	}, time.Second, 10*time.Millisecond)
	bus.PublishNew(eventbus.NotificationCreated, "n1", "Task 'A' is due today", map[string]string{
		"userId": "u1", "taskId": "t1", "projectId": "p1", "title": "A",
	})

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []string{"u1"}, rec.users)
	assert.Equal(t, &NotificationPayload{Title: "A", Body: "Task 'A' is due today", URL: "/projects/p1/tasks/t1", Tag: "n1"}, rec.sent[0])
}

func TestRegisterAndUnregister(t *testing.T) {
	repo := newSubRepo(t)
	r := chi.NewRouter()
	r.Use(cerr.NewConvertErrorChiMiddleware())
	NewServer(vapid, repo).Mount(r)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	rec := do(http.MethodPost, "/push/subscriptions", `{"userId":"u1","endpoint":"https://push/1","p256dhKey":"k","authKey":"a"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(http.MethodPost, "/push/subscriptions", `{"userId":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "endpoint is required")

	rec = do(http.MethodGet, "/push/vapid-public-key", "")
	assert.JSONEq(t, `{"publicKey":"pub"}`, rec.Body.String())

	rec = do(http.MethodDelete, "/push/subscriptions?endpoint=https://push/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(http.MethodDelete, "/push/subscriptions?endpoint=https://push/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
