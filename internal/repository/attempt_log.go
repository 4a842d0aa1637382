package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/gomodule/redigo/redis"
	"go.uber.org/zap"

	"linkgate-go/constant"
	"linkgate-go/pkg/logging"
)

// AttemptLog 按 (slug, 来源地址) 记录失败的密码尝试，只做滑动窗口内计数。
// 记录本身是短命的，窗口关闭后即可回收。window 由调用方逐次传入，
// 配置热更新后立即生效。
type AttemptLog interface {
	CountSince(ctx context.Context, slug, sourceAddr string, since time.Time) (int, error)
	Record(ctx context.Context, slug, sourceAddr string, at time.Time, window time.Duration) error
}

// RedisAttemptLog 以每个 (slug, addr) 一个 sorted set 实现：
// member 为纳秒时间戳（去重），score 为 unix 秒，窗口外成员用
// ZREMRANGEBYSCORE 清除，整个 key 带窗口期 TTL 兜底回收。
type RedisAttemptLog struct {
	pool *redis.Pool
}

func NewRedisAttemptLog(pool *redis.Pool) *RedisAttemptLog {
	return &RedisAttemptLog{pool: pool}
}

func (l *RedisAttemptLog) CountSince(ctx context.Context, slug, sourceAddr string, since time.Time) (int, error) {
	conn := l.pool.Get()
	defer closeConn(conn)

	key := constant.GetPasswordLogKey(slug, sourceAddr)

	// 先清除窗口外的旧记录
	if _, err := conn.Do("ZREMRANGEBYSCORE", key, "-inf", since.Unix()-1); err != nil {
		return 0, err
	}

	count, err := redis.Int(conn.Do("ZCOUNT", key, since.Unix(), "+inf"))
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (l *RedisAttemptLog) Record(ctx context.Context, slug, sourceAddr string, at time.Time, window time.Duration) error {
	conn := l.pool.Get()
	defer closeConn(conn)

	key := constant.GetPasswordLogKey(slug, sourceAddr)

	if _, err := conn.Do("ZADD", key, at.Unix(), strconv.FormatInt(at.UnixNano(), 10)); err != nil {
		return err
	}

	// TTL 兜底：窗口期内无新失败则整个 key 过期
	if _, err := conn.Do("EXPIRE", key, int64(window.Seconds())); err != nil {
		logging.Logger.Warn("Failed to set attempt log expiry",
			zap.String("key", key),
			zap.Error(err))
	}
	return nil
}

func closeConn(conn redis.Conn) {
	if err := conn.Close(); err != nil {
		logging.Logger.Error("Failed to close Redis connection",
			zap.Error(err),
			zap.String("operation", "close"),
			zap.String("connection_type", "redis"),
		)
	}
}
