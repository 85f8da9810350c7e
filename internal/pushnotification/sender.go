package pushnotification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sony/gobreaker"
	"github.com/sourcegraph/conc/pool"

	"github.com/kazz187/taskcadence/internal/config"
	"github.com/kazz187/taskcadence/internal/pushsubscription"
)

const maxConcurrentSends = 4

type NotificationPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

type sendFunc func(message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)

// errRejected marks push service responses that count against the breaker.
var errRejected = errors.New("push service rejected notification")

type Sender struct {
	vapidEnv *config.VAPIDEnv
	repo     pushsubscription.Repository
	breaker  *gobreaker.CircuitBreaker
	send     sendFunc
}

func NewSender(vapidEnv *config.VAPIDEnv, repo pushsubscription.Repository) *Sender {
	return &Sender{
		vapidEnv: vapidEnv,
		repo:     repo,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "webpush",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("push notification: circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
		send: webpush.SendNotification,
	}
}

// SendToUser delivers payload to every subscription of userID and returns
// how many deliveries succeeded.
func (s *Sender) SendToUser(ctx context.Context, userID string, payload *NotificationPayload) int {
	if !s.vapidEnv.Configured() {
		slog.WarnContext(ctx, "push notification: VAPID keys not configured, skipping")
		return 0
	}

	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to list subscriptions", "user_id", userID, "error", err)
		return 0
	}
	if len(subs) == 0 {
		return 0
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to marshal payload", "error", err)
		return 0
	}

	var delivered atomic.Int64
	p := pool.New().WithMaxGoroutines(maxConcurrentSends)
	for _, sub := range subs {
		p.Go(func() {
			if s.sendToSubscription(ctx, sub, data) {
				delivered.Add(1)
			}
		})
	}
	p.Wait()
	return int(delivered.Load())
}

func (s *Sender) sendToSubscription(ctx context.Context, sub *pushsubscription.Subscription, data []byte) bool {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}

	var status int
	_, err := s.breaker.Execute(func() (any, error) {
		resp, err := s.send(data, wpSub, &webpush.Options{
			VAPIDPublicKey:  s.vapidEnv.VAPIDPublicKey,
			VAPIDPrivateKey: s.vapidEnv.VAPIDPrivateKey,
			Subscriber:      s.vapidEnv.VAPIDContact,
			TTL:             86400,
		})
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		status = resp.StatusCode
		// Gone and other client errors are about this subscription, not the
		// push service.
		if status >= 500 || status == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: status %d", errRejected, status)
		}
		return nil, nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to send", "endpoint", sub.Endpoint, "error", err)
		return false
	}

	if status == http.StatusGone || status == http.StatusNotFound {
		slog.InfoContext(ctx, "push notification: subscription expired, removing", "endpoint", sub.Endpoint)
		if err := s.repo.Delete(ctx, sub.ID); err != nil {
			slog.ErrorContext(ctx, "push notification: failed to delete expired subscription", "id", sub.ID, "error", err)
		}
		return false
	}
	if status >= 400 {
		slog.WarnContext(ctx, "push notification: unexpected status", "endpoint", sub.Endpoint, "status", status)
		return false
	}
	return true
}
