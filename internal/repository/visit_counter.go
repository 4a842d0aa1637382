package repository

import (
	"context"

	"github.com/gomodule/redigo/redis"

	"linkgate-go/constant"
)

// VisitCounter 访问计数的 Redis 镜像，供统计接口低成本读取。
// 权威计数在 links 表的 visit_count 列。
type VisitCounter interface {
	Incr(ctx context.Context, slug string) error
	Get(ctx context.Context, slug string) (int64, error)
}

type RedisVisitCounter struct {
	pool *redis.Pool
}

func NewRedisVisitCounter(pool *redis.Pool) *RedisVisitCounter {
	return &RedisVisitCounter{pool: pool}
}

func (c *RedisVisitCounter) Incr(ctx context.Context, slug string) error {
	conn := c.pool.Get()
	defer closeConn(conn)

	_, err := conn.Do("INCR", constant.GetTotalVisitsKey(slug))
	return err
}

func (c *RedisVisitCounter) Get(ctx context.Context, slug string) (int64, error) {
	conn := c.pool.Get()
	defer closeConn(conn)

	reply, err := conn.Do("GET", constant.GetTotalVisitsKey(slug))
	if err != nil {
		return 0, err
	}
	if reply == nil {
		return 0, nil
	}
	return redis.Int64(reply, err)
}
