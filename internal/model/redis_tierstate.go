package model

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultRedisTierPrefix = "carsa:cascade:"

// RedisTierState shares tier indices between processes. Indices live in one
// hash keyed by tier. The reset window is a single key with a TTL; whoever
// creates it clears the hash, resetting every tier at once.
type RedisTierState struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisTierState(rdb redis.UniversalClient, prefix string) *RedisTierState {
	if prefix == "" {
		prefix = defaultRedisTierPrefix
	}
	return &RedisTierState{rdb: rdb, prefix: prefix}
}

// NewRedisTierStateFromURL connects to url and verifies the connection.
func NewRedisTierStateFromURL(ctx context.Context, url string) (*RedisTierState, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	rdb := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisTierState(rdb, ""), nil
}

func (s *RedisTierState) indexKey() string {
	return s.prefix + "index"
}

func (s *RedisTierState) resetKey() string {
	return s.prefix + "reset"
}

func (s *RedisTierState) Index(ctx context.Context, tier string) (int, error) {
	raw, err := s.rdb.HGet(ctx, s.indexKey(), tier).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get tier index: %w", err)
	}
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return 0, nil
	}
	return idx, nil
}

func (s *RedisTierState) SetIndex(ctx context.Context, tier string, idx int) error {
	if err := s.rdb.HSet(ctx, s.indexKey(), tier, idx).Err(); err != nil {
		return fmt.Errorf("set tier index: %w", err)
	}
	return nil
}

func (s *RedisTierState) ResetIfDue(ctx context.Context, interval time.Duration) error {
	created, err := s.rdb.SetNX(ctx, s.resetKey(), time.Now().UnixMilli(), interval).Result()
	if err != nil {
		return fmt.Errorf("tier reset marker: %w", err)
	}
	if !created {
		return nil
	}
	if err := s.rdb.Del(ctx, s.indexKey()).Err(); err != nil {
		return fmt.Errorf("reset tier indices: %w", err)
	}
	return nil
}

func (s *RedisTierState) Close() error {
	return s.rdb.Close()
}
