package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/deusflow/rundown/internal/news"
)

const redisKeyPrefix = "rundown:articles:"

// RedisStore keeps one JSON-encoded list per category.
type RedisStore struct {
	client *redis.Client
}

var _ Backend = (*RedisStore)(nil)

// NewRedisStore connects using a redis:// or rediss:// URL.
func NewRedisStore(ctx context.Context, rawURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func redisKey(category string) string {
	return redisKeyPrefix + category
}

func (rs *RedisStore) Find(ctx context.Context, category string) ([]news.Article, error) {
	raw, err := rs.client.LRange(ctx, redisKey(category), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange: %w", err)
	}
	articles := make([]news.Article, 0, len(raw))
	for _, item := range raw {
		var a news.Article
		if err := json.Unmarshal([]byte(item), &a); err != nil {
			return nil, fmt.Errorf("decode article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, nil
}

func (rs *RedisStore) Insert(ctx context.Context, a news.Article) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode article: %w", err)
	}
	if err := rs.client.RPush(ctx, redisKey(a.Category), data).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}

func (rs *RedisStore) DeleteMany(ctx context.Context, category string) (int64, error) {
	n, err := rs.client.LLen(ctx, redisKey(category)).Result()
	if err != nil {
		return 0, fmt.Errorf("llen: %w", err)
	}
	if err := rs.client.Del(ctx, redisKey(category)).Err(); err != nil {
		return 0, fmt.Errorf("del: %w", err)
	}
	return n, nil
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
