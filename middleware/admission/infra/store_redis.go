package infra

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"admission-gateway/middleware/admission/domain"

	"github.com/redis/go-redis/v9"
)

// tryAdmitScript é a admissão estrita no servidor: poda, conta e — se houver
// vaga — insere e renova o TTL, tudo em uma operação indivisível. Remove a
// corrida do check-then-commit para os stages configurados como atômicos.
//
// KEYS[1] = chave da janela
// ARGV[1] = now (ms), ARGV[2] = janela (ms), ARGV[3] = limite,
// ARGV[4] = membro, ARGV[5] = ttl (ms)
var tryAdmitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local cutoff = now - tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. cutoff)
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[3]) then
  redis.call('ZADD', KEYS[1], now, ARGV[4])
  redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[5]))
  return {count + 1, 1}
end
return {count, 0}
`)

// RedisWindowStore implementa domain.WindowStore (e domain.AtomicAdmitter)
// sobre sorted sets do Redis. Scores são milissegundos unix.
type RedisWindowStore struct {
	rdb *redis.Client

	// callTimeout limita cada ida à rede; estourou, a falha vira fail-open
	// na camada de cima. Zero desabilita (o ctx da requisição manda).
	callTimeout time.Duration
}

type RedisWindowOption func(*RedisWindowStore)

// WithCallTimeout define o timeout de cada chamada ao Redis.
func WithCallTimeout(d time.Duration) RedisWindowOption {
	return func(s *RedisWindowStore) { s.callTimeout = d }
}

func NewRedisWindowStore(rdb *redis.Client, opts ...RedisWindowOption) *RedisWindowStore {
	s := &RedisWindowStore{rdb: rdb, callTimeout: 500 * time.Millisecond}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisWindowStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

func (s *RedisWindowStore) Add(ctx context.Context, key, member string, score int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.rdb.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: member}).Err(); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *RedisWindowStore) RemoveBelow(ctx context.Context, key string, cutoff int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	// score < cutoff (limite exclusivo)
	max := "(" + strconv.FormatInt(cutoff, 10)
	if err := s.rdb.ZRemRangeByScore(ctx, key, "-inf", max).Err(); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *RedisWindowStore) CountInRange(ctx context.Context, key string, lo, hi int64) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	n, err := s.rdb.ZCount(ctx, key, strconv.FormatInt(lo, 10), strconv.FormatInt(hi, 10)).Result()
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

func (s *RedisWindowStore) ListInRange(ctx context.Context, key string, lo, hi int64) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	members, err := s.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(lo, 10),
		Max: strconv.FormatInt(hi, 10),
	}).Result()
	if err != nil {
		return nil, storeErr(err)
	}
	return members, nil
}

func (s *RedisWindowStore) SetExpiry(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *RedisWindowStore) Reset(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *RedisWindowStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return storeErr(err)
	}
	return nil
}

// TryAdmit implementa domain.AtomicAdmitter via script Lua.
func (s *RedisWindowStore) TryAdmit(ctx context.Context, key, member string, now int64, window time.Duration, limit int64, ttl time.Duration) (int64, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := tryAdmitScript.Run(ctx, s.rdb, []string{key},
		now, window.Milliseconds(), limit, member, ttl.Milliseconds(),
	).Result()
	if err != nil {
		return 0, false, storeErr(err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 2 {
		return 0, false, storeErr(fmt.Errorf("unexpected script reply %T", raw))
	}
	count, _ := reply[0].(int64)
	admitted, _ := reply[1].(int64)
	return count, admitted == 1, nil
}
