package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"linkgate-go/internal/repository"
	"linkgate-go/pkg/logging"
)

// SweepExpiredLinks 定期清理已过期链接。只负责存储回收，
// 读路径的惰性删除已保证过期链接不会被解析成功。
func SweepExpiredLinks(store repository.LinkStore) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := store.DeleteExpired(ctx, time.Now())
	if err != nil {
		logging.Logger.Error("Failed to sweep expired links", zap.Error(err))
		return err
	}

	if deleted > 0 {
		logging.Logger.Info("Swept expired links", zap.Int64("deleted", deleted))
	}
	return nil
}
