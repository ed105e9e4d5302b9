package snapshot

import (
	"bytes"
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "giveaway-bot:snapshot"

// RedisBackend stores the encoded document as an ordered list of chunks.
// The list is replaced inside MULTI/EXEC so readers never see a mix of two
// versions.
type RedisBackend struct {
	client    redis.Cmdable
	key       string
	chunkSize int
}

func NewRedisBackend(client redis.Cmdable, key string, chunkSize int) *RedisBackend {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisBackend{client: client, key: key, chunkSize: chunkSize}
}

func (b *RedisBackend) Load(ctx context.Context) (*Document, error) {
	chunks, err := b.client.LRange(ctx, b.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load snapshot chunks: %w", err)
	}
	if len(chunks) == 0 {
		return NewDocument(), nil
	}

	var buf bytes.Buffer
	for _, c := range chunks {
		buf.WriteString(c)
	}
	return Decode(buf.Bytes())
}

func (b *RedisBackend) Save(ctx context.Context, doc *Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	chunks := Split(data, b.chunkSize)
	values := make([]interface{}, len(chunks))
	for i, c := range chunks {
		values[i] = string(c)
	}

	pipe := b.client.TxPipeline()
	pipe.Del(ctx, b.key)
	if len(values) > 0 {
		pipe.RPush(ctx, b.key, values...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot chunks: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (b *RedisBackend) Close() error { return nil }
