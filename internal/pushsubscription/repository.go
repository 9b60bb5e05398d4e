package pushsubscription

import "context"

type Repository interface {
	// Upsert creates or replaces the record keyed on (UserID, Endpoint).
	Upsert(ctx context.Context, s *Subscription) error
	FindByUserAndEndpoint(ctx context.Context, userID, endpoint string) (*Subscription, error)
	List(ctx context.Context) ([]*Subscription, error)
	// ListExcludingUser returns every subscription not owned by userID.
	ListExcludingUser(ctx context.Context, userID string) ([]*Subscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
	DeleteByUserAndEndpoint(ctx context.Context, userID, endpoint string) error
}
