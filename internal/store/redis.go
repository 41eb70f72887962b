package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"medreminder-go/internal/models"

	"github.com/redis/go-redis/v9"
)

const autoMarkOffSet = "settings:automark:disabled"

// doseEventsChannel is per user: taken events fan out only to the
// owner's open tabs, never across accounts.
func doseEventsChannel(userID int) string {
	return fmt.Sprintf("dose_events:%d", userID)
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(opts *redis.Options) *RedisStore {
	rdb := redis.NewClient(opts)
	return &RedisStore{client: rdb}
}

// GetSettings loads a user's preference flags; a user with no saved
// settings gets the defaults.
func (s *RedisStore) GetSettings(ctx context.Context, userID int) (models.Settings, error) {
	val, err := s.client.Get(ctx, fmt.Sprintf("settings:%d", userID)).Result()
	if err == redis.Nil {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, err
	}

	var settings models.Settings
	if err := json.Unmarshal([]byte(val), &settings); err != nil {
		return models.Settings{}, err
	}
	return settings, nil
}

// SaveSettings persists the flags and keeps the auto-mark opt-out set
// in sync, so the sweeper can exclude those users with one read.
func (s *RedisStore) SaveSettings(ctx context.Context, userID int, settings models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, fmt.Sprintf("settings:%d", userID), data, 0)
	if settings.AutoMarkMissed {
		pipe.SRem(ctx, autoMarkOffSet, userID)
	} else {
		pipe.SAdd(ctx, autoMarkOffSet, userID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) AutoMarkDisabledUsers(ctx context.Context) ([]int, error) {
	members, err := s.client.SMembers(ctx, autoMarkOffSet).Result()
	if err != nil {
		return nil, err
	}

	var ids []int
	for _, m := range members {
		if id, err := strconv.Atoi(m); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// PublishDoseTaken fans a taken event out to the owner's SSE listeners.
func (s *RedisStore) PublishDoseTaken(ctx context.Context, userID int, ev models.DoseTakenEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, doseEventsChannel(userID), data).Err()
}

func (s *RedisStore) SubscribeDoseEvents(ctx context.Context, userID int) *redis.PubSub {
	return s.client.Subscribe(ctx, doseEventsChannel(userID))
}
