package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"linkgate-go/internal/apperrors"
	"linkgate-go/internal/model"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	guard := NewPasswordGuard(newMemAttemptLog())

	tests := []struct {
		name   string
		pwType model.PasswordType
		raw    string
	}{
		{"six digit", model.PasswordSixDigit, "123456"},
		{"custom", model.PasswordCustom, "correct horse battery staple"},
		{"custom single char", model.PasswordCustom, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.pwType, tt.raw)
			if err != nil {
				t.Fatalf("hash error: %v", err)
			}
			if hash == tt.raw {
				t.Fatal("hash equals plaintext")
			}
			if !guard.Verify(tt.raw, hash) {
				t.Error("correct candidate rejected")
			}
			if guard.Verify(tt.raw+"x", hash) {
				t.Error("wrong candidate accepted")
			}
		})
	}
}

func TestHashPassword_Format(t *testing.T) {
	tests := []struct {
		name   string
		pwType model.PasswordType
		raw    string
	}{
		{"five digits", model.PasswordSixDigit, "12345"},
		{"seven digits", model.PasswordSixDigit, "1234567"},
		{"letters", model.PasswordSixDigit, "12345a"},
		{"empty six digit", model.PasswordSixDigit, ""},
		{"empty custom", model.PasswordCustom, ""},
		{"custom too long", model.PasswordCustom, string(make([]byte, 129))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := HashPassword(tt.pwType, tt.raw); err == nil {
				t.Errorf("HashPassword(%s, %q) expected format error", tt.pwType, tt.raw)
			}
		})
	}
}

func TestRateLimit_Boundary(t *testing.T) {
	swapSettings(t, testSettings())

	log := newMemAttemptLog()
	guard := NewPasswordGuard(log)

	now := time.Now()
	guard.now = func() time.Time { return now }

	ctx := context.Background()

	// 5 次失败以内放行
	for i := 0; i < 5; i++ {
		if err := guard.CheckRateLimit(ctx, "promo", "10.0.0.1"); err != nil {
			t.Fatalf("attempt %d unexpectedly limited: %v", i+1, err)
		}
		guard.RecordFailure(ctx, "promo", "10.0.0.1")
	}

	// 第 6 次拒绝
	err := guard.CheckRateLimit(ctx, "promo", "10.0.0.1")
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Message != "error.too_many_attempts" {
		t.Fatalf("expected TooManyAttempts, got %v", err)
	}

	// 其他来源地址不受影响
	if err := guard.CheckRateLimit(ctx, "promo", "10.0.0.2"); err != nil {
		t.Fatalf("different address unexpectedly limited: %v", err)
	}

	// 其他 slug 不受影响
	if err := guard.CheckRateLimit(ctx, "other", "10.0.0.1"); err != nil {
		t.Fatalf("different slug unexpectedly limited: %v", err)
	}

	// 窗口完全过去后放行
	guard.now = func() time.Time { return now.Add(time.Hour + time.Second) }
	if err := guard.CheckRateLimit(ctx, "promo", "10.0.0.1"); err != nil {
		t.Fatalf("attempt after window unexpectedly limited: %v", err)
	}
}

func TestRecordFailure_RemainingCountdown(t *testing.T) {
	swapSettings(t, testSettings())

	guard := NewPasswordGuard(newMemAttemptLog())
	now := time.Now()
	guard.now = func() time.Time { return now }

	ctx := context.Background()

	want := []int{4, 3, 2, 1, 0}
	for i, expected := range want {
		remaining := guard.RecordFailure(ctx, "promo", "10.0.0.1")
		if remaining != expected {
			t.Errorf("failure %d: remaining = %d, want %d", i+1, remaining, expected)
		}
	}

	// 超过上限不出现负数
	if remaining := guard.RecordFailure(ctx, "promo", "10.0.0.1"); remaining != 0 {
		t.Errorf("remaining after cap = %d, want 0", remaining)
	}
}

func TestRecordFailure_WindowFollowsSettings(t *testing.T) {
	swapSettings(t, testSettings())

	log := newMemAttemptLog()
	guard := NewPasswordGuard(log)
	ctx := context.Background()

	guard.RecordFailure(ctx, "promo", "10.0.0.1")
	if log.lastWindow != time.Hour {
		t.Fatalf("recorded window = %v, want 1h", log.lastWindow)
	}

	// 窗口热更新后，新记录的回收期跟随当前快照
	updated := testSettings()
	updated.GuardWindow = 30 * time.Minute
	swapSettings(t, updated)

	guard.RecordFailure(ctx, "promo", "10.0.0.1")
	if log.lastWindow != 30*time.Minute {
		t.Errorf("recorded window = %v, want 30m after reload", log.lastWindow)
	}
}
