package changestream

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Checkpoint persists the change stream resume token.
type Checkpoint interface {
	Load(ctx context.Context) (bson.Raw, error)
	Save(ctx context.Context, token bson.Raw) error
}

// RedisCheckpoint stores the raw token bytes under a single key.
type RedisCheckpoint struct {
	client redis.Cmdable
	key    string
}

func NewRedisCheckpoint(client redis.Cmdable, key string) *RedisCheckpoint {
	return &RedisCheckpoint{client: client, key: key}
}

// Load returns nil when no token has been saved yet.
func (c *RedisCheckpoint) Load(ctx context.Context) (bson.Raw, error) {
	b, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	token := bson.Raw(b)
	if err := token.Validate(); err != nil {
		return nil, err
	}
	return token, nil
}

func (c *RedisCheckpoint) Save(ctx context.Context, token bson.Raw) error {
	if len(token) == 0 {
		return nil
	}
	return c.client.Set(ctx, c.key, []byte(token), 0).Err()
}
