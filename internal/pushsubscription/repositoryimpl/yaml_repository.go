package repositoryimpl

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/famnews/famnews/internal/pushsubscription"
	"github.com/famnews/famnews/pkg/cerr"
	"github.com/famnews/famnews/pkg/storage"
)

const pushSubscriptionsPrefix = "push_subscriptions"

type YAMLRepository struct {
	storage storage.Storage
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{storage: s}
}

// path derives the storage key from the natural key (userID, endpoint).
// Writing the same key is an atomic replace, which gives upsert its
// last-write-wins behavior without read-modify-write coordination.
func path(userID, endpoint string) string {
	sum := sha256.Sum256([]byte(userID + "\n" + endpoint))
	return fmt.Sprintf("%s/%x.yaml", pushSubscriptionsPrefix, sum[:16])
}

func (r *YAMLRepository) Upsert(ctx context.Context, s *pushsubscription.Subscription) error {
	now := time.Now()
	if existing, err := r.FindByUserAndEndpoint(ctx, s.UserID, s.Endpoint); err == nil {
		s.ID = existing.ID
		s.CreatedAt = existing.CreatedAt
	} else if !cerr.IsCode(err, cerr.NotFound) {
		return err
	}
	if s.ID == "" {
		s.ID = ulid.Make().String()
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	data, err := yaml.Marshal(s)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal push subscription: %w", err))
	}
	if err := r.storage.Write(ctx, path(s.UserID, s.Endpoint), data); err != nil {
		return cerr.WrapStorageWriteError("push_subscription", err)
	}
	return nil
}

func (r *YAMLRepository) FindByUserAndEndpoint(ctx context.Context, userID, endpoint string) (*pushsubscription.Subscription, error) {
	data, err := r.storage.Read(ctx, path(userID, endpoint))
	if err != nil {
		return nil, cerr.WrapStorageReadError("push_subscription", err)
	}
	var s pushsubscription.Subscription
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal push subscription: %w", err))
	}
	return &s, nil
}

func (r *YAMLRepository) List(ctx context.Context) ([]*pushsubscription.Subscription, error) {
	paths, err := r.storage.List(ctx, pushSubscriptionsPrefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError("push_subscriptions", err)
	}

	sort.Strings(paths)

	var all []*pushsubscription.Subscription
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var s pushsubscription.Subscription
		if err := yaml.Unmarshal(data, &s); err != nil {
			continue
		}
		all = append(all, &s)
	}
	return all, nil
}

func (r *YAMLRepository) ListExcludingUser(ctx context.Context, userID string) ([]*pushsubscription.Subscription, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	targets := make([]*pushsubscription.Subscription, 0, len(all))
	for _, s := range all {
		if s.UserID != userID {
			targets = append(targets, s)
		}
	}
	return targets, nil
}

func (r *YAMLRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	all, err := r.List(ctx)
	if err != nil {
		return err
	}
	deleted := false
	for _, s := range all {
		if s.Endpoint != endpoint {
			continue
		}
		if err := r.storage.Delete(ctx, path(s.UserID, s.Endpoint)); err != nil {
			return cerr.WrapStorageDeleteError("push_subscription", err)
		}
		deleted = true
	}
	if !deleted {
		return cerr.NewError(cerr.NotFound, "push subscription not found", nil)
	}
	return nil
}

func (r *YAMLRepository) DeleteByUserAndEndpoint(ctx context.Context, userID, endpoint string) error {
	if err := r.storage.Delete(ctx, path(userID, endpoint)); err != nil {
		return cerr.WrapStorageDeleteError("push_subscription", err)
	}
	return nil
}
