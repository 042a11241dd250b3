package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	toll "toll-calculator/internal/toll/domain"
)

const defaultRedisKey = "toll:rules"

// ErrRulesNotFound is returned when the source holds no rule set.
var ErrRulesNotFound = errors.New("toll rules: not found")

// RedisProvider reads a JSON rule document stored under one key.
type RedisProvider struct {
	client redis.UniversalClient
	key    string
}

// NewRedisProvider constructs a provider. An empty key uses "toll:rules".
func NewRedisProvider(client redis.UniversalClient, key string) (*RedisProvider, error) {
	if client == nil {
		return nil, errors.New("redis provider: nil client")
	}
	if key == "" {
		key = defaultRedisKey
	}
	return &RedisProvider{client: client, key: key}, nil
}

// Fetch implements application.RuleProvider.
func (p *RedisProvider) Fetch(ctx context.Context) (*toll.RuleSet, error) {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: redis key %s", ErrRulesNotFound, p.key)
		}
		return nil, fmt.Errorf("redis provider: get %s: %w", p.key, err)
	}
	return DecodeRuleSet(data, FormatJSON)
}

// Publish stores the rule set under the provider's key.
func (p *RedisProvider) Publish(ctx context.Context, rules *toll.RuleSet) error {
	if err := rules.Validate(); err != nil {
		return err
	}
	data, err := encodeJSON(FromDomain(rules))
	if err != nil {
		return err
	}
	return p.client.Set(ctx, p.key, data, 0).Err()
}
