package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"nowplaying/internal/config"

	r "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const REDIS_TOKEN = "nowplaying:token"

// Store persists the Spotify OAuth token so a restart does not require a
// new login.
type Store struct {
	logger *zap.SugaredLogger
	rdb    *r.Client
}

func NewStore(cfg *config.Config, logger *zap.SugaredLogger) *Store {
	logger.Info("Connecting to redis... ", cfg.RedisAddr())
	return &Store{
		logger: logger,
		rdb: r.NewClient(&r.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDatabase,
		}),
	}
}

func (s *Store) GetLastToken(ctx context.Context) (*oauth2.Token, error) {
	if s.rdb == nil {
		return nil, fmt.Errorf("redis not initialized")
	}
	res, err := s.rdb.Get(ctx, REDIS_TOKEN).Result()
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Token found in redis")

	var token oauth2.Token
	if err := json.Unmarshal([]byte(res), &token); err != nil {
		return nil, fmt.Errorf("failed to decode stored token: %w", err)
	}
	return &token, nil
}

func (s *Store) SaveToken(ctx context.Context, token *oauth2.Token) error {
	if s.rdb == nil {
		return fmt.Errorf("redis not initialized")
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return s.rdb.Set(ctx, REDIS_TOKEN, data, 0).Err()
}

func (s *Store) Close() error {
	if s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
