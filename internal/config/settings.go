package config

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Settings 运行期配置快照。每次请求读取指针而非 viper，
// 配置变更时整体替换，读路径无锁。
type Settings struct {
	SlugLength       int
	SlugMaxRetries   int
	Denylist         map[string]struct{}
	DefaultExpiry    time.Duration
	FallbackURL      string
	GuardMaxAttempts int
	GuardWindow      time.Duration
	ProbeTimeout     time.Duration
	ProbeFailOpen    bool
	LookupRetries    int
	CacheTTL         time.Duration
	ClickQueueSize   int
}

var current atomic.Pointer[Settings]

func init() {
	current.Store(defaults())
}

func defaults() *Settings {
	return &Settings{
		SlugLength:       7,
		SlugMaxRetries:   5,
		Denylist:         map[string]struct{}{},
		DefaultExpiry:    0,
		FallbackURL:      "/",
		GuardMaxAttempts: 5,
		GuardWindow:      time.Hour,
		ProbeTimeout:     3 * time.Second,
		ProbeFailOpen:    true,
		LookupRetries:    3,
		CacheTTL:         time.Hour,
		ClickQueueSize:   1024,
	}
}

// Current 返回当前配置快照
func Current() *Settings {
	return current.Load()
}

// Reload 从 viper 重建快照并原子替换
func Reload() {
	s := defaults()

	if v := viper.GetInt("shortener.slug_length"); v > 0 {
		s.SlugLength = v
	}
	if v := viper.GetInt("shortener.slug_max_retries"); v > 0 {
		s.SlugMaxRetries = v
	}
	// 匹配端按小写比较，入口也统一小写
	for _, word := range viper.GetStringSlice("shortener.denylist") {
		s.Denylist[strings.ToLower(word)] = struct{}{}
	}
	if v := viper.GetDuration("shortener.default_expiry"); v > 0 {
		s.DefaultExpiry = v
	}
	if v := viper.GetString("shortener.fallback_url"); v != "" {
		s.FallbackURL = v
	}
	if v := viper.GetInt("guard.max_attempts"); v > 0 {
		s.GuardMaxAttempts = v
	}
	if v := viper.GetDuration("guard.window"); v > 0 {
		s.GuardWindow = v
	}
	if v := viper.GetDuration("probe.timeout"); v > 0 {
		s.ProbeTimeout = v
	}
	if viper.IsSet("probe.fail_open") {
		s.ProbeFailOpen = viper.GetBool("probe.fail_open")
	}
	if v := viper.GetInt("resolver.lookup_retries"); v > 0 {
		s.LookupRetries = v
	}
	if v := viper.GetDuration("resolver.cache_ttl"); v > 0 {
		s.CacheTTL = v
	}
	if v := viper.GetInt("clicks.queue_size"); v > 0 {
		s.ClickQueueSize = v
	}

	current.Store(s)
}

// Watch 监听配置文件变更，自动刷新快照
func Watch(logger *zap.Logger) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		Reload()
		logger.Info("Settings snapshot reloaded", zap.String("file", e.Name))
	})
	viper.WatchConfig()
}

// Swap 直接替换快照，测试用
func Swap(s *Settings) *Settings {
	return current.Swap(s)
}
