package pushsubscription

import "time"

// Subscription is one browser endpoint of a user.
type Subscription struct {
	ID        string    `json:"-"`
	UserID    string    `json:"userId"`
	Endpoint  string    `json:"endpoint"`
	P256dhKey string    `json:"p256dhKey"`
	AuthKey   string    `json:"authKey"`
	CreatedAt time.Time `json:"createdAt"`
}
