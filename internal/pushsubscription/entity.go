package pushsubscription

import "time"

// Subscription is one device push channel owned by a member. A member may
// hold many subscriptions (one per device/browser); the pair
// (UserID, Endpoint) is the natural key.
type Subscription struct {
	ID        string    `yaml:"id"`
	UserID    string    `yaml:"user_id"`
	Endpoint  string    `yaml:"endpoint"`
	P256dhKey string    `yaml:"p256dh_key"`
	AuthKey   string    `yaml:"auth_key"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
}
