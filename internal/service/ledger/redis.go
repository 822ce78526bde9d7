package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/samber/lo"
)

const DefaultRedisKey = "crypto_alert:ledger"

var _ Ledger = (*RedisLedger)(nil)

// RedisLedger 告警以 JSON 追加到 list, 适合没有持久磁盘的部署
type RedisLedger struct {
	client redis.Cmdable
	key    string
}

func FromRedis(client redis.Cmdable, key string) *RedisLedger {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisLedger{client: client, key: key}
}

func (l *RedisLedger) Append(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return &WriteError{Path: l.key, Err: err}
	}
	if err = l.client.RPush(ctx, l.key, string(data)).Err(); err != nil {
		return &WriteError{Path: l.key, Err: err}
	}
	return nil
}

func (l *RedisLedger) DrainForDigest(ctx context.Context) (string, error) {
	items, err := l.client.LRange(ctx, l.key, 0, -1).Result()
	if err != nil {
		return "", fmt.Errorf("ledger: read %s: %w", l.key, err)
	}
	if len(items) == 0 {
		return "", ErrEmpty
	}

	lines := lo.FilterMap(items, func(item string, _ int) (string, bool) {
		var e Event
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			// 不是本程序写入的内容原样输出
			return strings.TrimSpace(item), strings.TrimSpace(item) != ""
		}
		return e.Line(), true
	})
	if len(lines) == 0 {
		return "", ErrEmpty
	}
	return strings.Join(lines, "\n") + "\n", nil
}

func (l *RedisLedger) Clear(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}

func (l *RedisLedger) Len(ctx context.Context) (int, error) {
	n, err := l.client.LLen(ctx, l.key).Result()
	return int(n), err
}
