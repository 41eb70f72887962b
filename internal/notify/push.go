package notify

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/SherClockHolmes/webpush-go"

	"medreminder-go/internal/models"
)

// Channel is the push delivery transport. The scheduler and sweeper
// only ever talk to this interface; WebPush is the real thing.
type Channel interface {
	Deliver(ctx context.Context, sub models.PushSubscription, payload models.NotificationPayload) error
}

type WebPush struct {
	privateKey string
	publicKey  string
	subscriber string
	ttl        int
}

// NewWebPush reads VAPID keys from the environment, generating a fresh
// pair when they're absent (logged so they can be persisted in .env).
func NewWebPush() (*WebPush, error) {
	privateKey := os.Getenv("VAPID_PRIVATE_KEY")
	publicKey := os.Getenv("VAPID_PUBLIC_KEY")

	if privateKey == "" || publicKey == "" {
		log.Println("VAPID keys not found in environment. Generating new keys...")
		var err error
		privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
		if err != nil {
			return nil, err
		}
		log.Printf("Generated VAPID Keys:\nVAPID_PRIVATE_KEY=%s\nVAPID_PUBLIC_KEY=%s\n(Add these to your .env file to persist them)", privateKey, publicKey)
	}

	subscriber := os.Getenv("VAPID_SUBSCRIBER")
	if subscriber == "" {
		subscriber = "mailto:admin@example.com"
	}

	return &WebPush{
		privateKey: privateKey,
		publicKey:  publicKey,
		subscriber: subscriber,
		ttl:        30,
	}, nil
}

// PublicKey returns the VAPID public key clients subscribe with.
func (w *WebPush) PublicKey() string {
	return w.publicKey
}

func (w *WebPush) Deliver(ctx context.Context, sub models.PushSubscription, payload models.NotificationPayload) error {
	message, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	s := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, message, s, &webpush.Options{
		Subscriber:      w.subscriber,
		VAPIDPublicKey:  w.publicKey,
		VAPIDPrivateKey: w.privateKey,
		TTL:             w.ttl,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return nil
}
