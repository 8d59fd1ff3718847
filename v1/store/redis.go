package store

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	gateerrors "github.com/mirkobrombin/go-gate/v1/errors"
)

const defaultRedisOpTimeout = 5 * time.Second

// casScript performs the conditional write server-side. ARGV[1] is the
// expected version token ("" for create-only), ARGV[2] the new token and
// ARGV[3] the new body.
var casScript = redis.NewScript(`
local cur = redis.call("HGET", KEYS[1], "v")
if ARGV[1] == "" then
    if cur then return 0 end
elseif not cur or cur ~= ARGV[1] then
    return 0
end
redis.call("HSET", KEYS[1], "v", ARGV[2], "d", ARGV[3])
return 1
`)

// Redis implements Store using a Redis backend. Each object lives in a hash
// holding the body and its version token so that the CAS script can inspect
// and replace both atomically.
type Redis struct {
	client  *redis.Client
	timeout time.Duration
}

// RedisOption configures a Redis store.
type RedisOption func(*redisOptions)

type redisOptions struct {
	timeout time.Duration
}

// WithTimeout sets the operation timeout for Redis calls.
func WithTimeout(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.timeout = d
	}
}

// NewRedis returns a new Redis store using the provided client.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	o := redisOptions{timeout: defaultRedisOpTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return &Redis{client: client, timeout: o.timeout}
}

func redisKey(bucket, key string) string {
	return bucket + "/" + key
}

func mapRedisErr(err error) error {
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return gateerrors.ErrTimeout
	}
	if stdErrors.Is(err, redis.ErrClosed) {
		return gateerrors.ErrConnectionClosed
	}
	return err
}

// Get implements Store.Get.
func (s *Redis) Get(ctx context.Context, bucket, key string) ([]byte, string, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", false, mapRedisErr(err)
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.client.HMGet(cctx, redisKey(bucket, key), "v", "d").Result()
	if err != nil {
		return nil, "", false, mapRedisErr(err)
	}
	version, ok := res[0].(string)
	if !ok {
		return nil, "", false, nil
	}
	body, _ := res[1].(string)
	return []byte(body), version, true, nil
}

// Put implements Store.Put.
func (s *Redis) Put(ctx context.Context, bucket, key string, data []byte, expectedVersion string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", mapRedisErr(err)
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	version := uuid.NewString()
	res, err := casScript.Run(cctx, s.client, []string{redisKey(bucket, key)},
		expectedVersion, version, string(data)).Int()
	if err != nil {
		return "", mapRedisErr(err)
	}
	if res == 0 {
		return "", gateerrors.ErrConflict
	}
	return version, nil
}

// Delete implements Store.Delete.
func (s *Redis) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return mapRedisErr(err)
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Del(cctx, redisKey(bucket, key)).Err(); err != nil {
		return mapRedisErr(err)
	}
	return nil
}
