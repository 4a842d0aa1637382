package service

import (
	"context"
	"crypto/sha256"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"linkgate-go/internal/apperrors"
	"linkgate-go/internal/config"
	"linkgate-go/internal/model"
	"linkgate-go/internal/repository"
	"linkgate-go/pkg/logging"
	"linkgate-go/pkg/utils"
)

// PasswordGuard 受保护链接的速率限制与凭证校验。
// 限流判定必须先于任何哈希比较，防止限流本身被计时绕过，
// 也省掉被拒请求的哈希开销。
type PasswordGuard struct {
	attempts repository.AttemptLog
	now      func() time.Time
}

func NewPasswordGuard(attempts repository.AttemptLog) *PasswordGuard {
	return &PasswordGuard{attempts: attempts, now: time.Now}
}

// CheckRateLimit 滑动窗口内失败次数达到上限则拒绝
func (g *PasswordGuard) CheckRateLimit(ctx context.Context, slug, sourceAddr string) error {
	settings := config.Current()
	since := g.now().Add(-settings.GuardWindow)

	count, err := g.attempts.CountSince(ctx, slug, sourceAddr, since)
	if err != nil {
		// 失败记录查不到时放行并告警，限流是防护手段不是主功能
		logging.Logger.Warn("Failed to count password attempts",
			zap.String("slug", slug),
			zap.String("source_addr", sourceAddr),
			zap.Error(err))
		return nil
	}

	if count >= settings.GuardMaxAttempts {
		return apperrors.TooManyAttemptsError()
	}
	return nil
}

// RecordFailure 记录一次失败尝试，返回窗口内剩余可用次数。
// 成功验证不清除既有失败记录，由窗口自然老化。
func (g *PasswordGuard) RecordFailure(ctx context.Context, slug, sourceAddr string) int {
	settings := config.Current()
	now := g.now()

	if err := g.attempts.Record(ctx, slug, sourceAddr, now, settings.GuardWindow); err != nil {
		logging.Logger.Error("Failed to record password attempt",
			zap.String("slug", slug),
			zap.String("source_addr", sourceAddr),
			zap.Error(err))
	}

	count, err := g.attempts.CountSince(ctx, slug, sourceAddr, now.Add(-settings.GuardWindow))
	if err != nil {
		return 0
	}

	remaining := settings.GuardMaxAttempts - count
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Verify 凭证比较走 bcrypt 自带的校验函数，不做原始字符串比较
func (g *PasswordGuard) Verify(candidate, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), digest(candidate)) == nil
}

// digest bcrypt 只取前 72 字节，先做 sha256 以支持更长的自定义密码
func digest(raw string) []byte {
	sum := sha256.Sum256([]byte(raw))
	return sum[:]
}

// HashPassword 按密码类型做格式校验后生成哈希
func HashPassword(pwType model.PasswordType, raw string) (string, error) {
	switch pwType {
	case model.PasswordSixDigit:
		if err := utils.ValidateSixDigit(raw); err != nil {
			return "", err
		}
	case model.PasswordCustom:
		if err := utils.ValidateCustomPassword(raw); err != nil {
			return "", err
		}
	}

	hash, err := bcrypt.GenerateFromPassword(digest(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
