// Package notify sends web push notifications for ledger events. Sends are
// fire-and-forget: delivery failures are logged, never propagated, and an
// unconfigured service is a no-op — core operations must not block on it.
package notify

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/mhollis/chorecoin/internal/model"
	"github.com/mhollis/chorecoin/internal/store"
)

// ErrExpired is returned when a push subscription is no longer valid (410 Gone).
var ErrExpired = errors.New("push subscription expired")

// Payload is the JSON sent to the push service.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Config holds VAPID configuration.
type Config struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
}

type Service struct {
	publicKey  string
	privateKey string
	subs       *store.PushStore
	logger     *slog.Logger
}

// NewService creates a push service. A nil return from an empty config is
// valid; all methods on a nil *Service are no-ops.
func NewService(cfg Config, subs *store.PushStore, logger *slog.Logger) *Service {
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil
	}
	return &Service{
		publicKey:  cfg.VAPIDPublicKey,
		privateKey: cfg.VAPIDPrivateKey,
		subs:       subs,
		logger:     logger,
	}
}

// VAPIDPublicKey returns the VAPID public key for client-side subscription.
func (s *Service) VAPIDPublicKey() string {
	if s == nil {
		return ""
	}
	return s.publicKey
}

// NotifyAdmins fans a payload out to every admin subscription in the
// household, asynchronously.
func (s *Service) NotifyAdmins(householdID int64, payload Payload) {
	if s == nil {
		return
	}
	go func() {
		subs, err := s.subs.ListAdminsByHousehold(householdID)
		if err != nil {
			s.logger.Error("list admin subscriptions", "household_id", householdID, "error", err)
			return
		}
		s.fanOut(subs, payload)
	}()
}

// NotifyUser sends a payload to all of one user's subscriptions, asynchronously.
func (s *Service) NotifyUser(userID int64, payload Payload) {
	if s == nil {
		return
	}
	go func() {
		subs, err := s.subs.ListByUser(userID)
		if err != nil {
			s.logger.Error("list user subscriptions", "user_id", userID, "error", err)
			return
		}
		s.fanOut(subs, payload)
	}()
}

func (s *Service) fanOut(subs []model.PushSubscription, payload Payload) {
	for i := range subs {
		sub := &subs[i]
		err := s.send(sub, payload)
		if errors.Is(err, ErrExpired) {
			if err := s.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				s.logger.Error("drop expired subscription", "error", err)
			}
			continue
		}
		if err != nil {
			s.logger.Error("send push", "endpoint", sub.Endpoint, "error", err)
		}
	}
}

func (s *Service) send(sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotification(data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      "mailto:noreply@chorecoin.app",
		TTL:             86400,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		return ErrExpired
	}
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		return ErrExpired
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}

	return nil
}

// GenerateVAPIDKeys generates a new ECDSA P-256 key pair for VAPID.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDSA key: %w", err)
	}

	pubBytes := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	publicKey = base64.RawURLEncoding.EncodeToString(pubBytes)
	privateKey = base64.RawURLEncoding.EncodeToString(key.D.Bytes())

	return publicKey, privateKey, nil
}
