package config

import (
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefaults(t *testing.T) {
	s := defaults()

	if s.SlugLength != 7 {
		t.Errorf("SlugLength = %d, want 7", s.SlugLength)
	}
	if s.GuardMaxAttempts != 5 {
		t.Errorf("GuardMaxAttempts = %d, want 5", s.GuardMaxAttempts)
	}
	if s.GuardWindow != time.Hour {
		t.Errorf("GuardWindow = %v, want 1h", s.GuardWindow)
	}
	if !s.ProbeFailOpen {
		t.Error("ProbeFailOpen should default to true")
	}
}

func TestReload_DenylistLowercased(t *testing.T) {
	old := Current()
	defer Swap(old)

	viper.Set("shortener.denylist", []string{"Admin", "API", "static"})
	defer viper.Set("shortener.denylist", []string{})

	Reload()

	// 配置里的大小写不影响匹配，比较端统一按小写
	denylist := Current().Denylist
	for _, want := range []string{"admin", "api", "static"} {
		if _, ok := denylist[want]; !ok {
			t.Errorf("denylist missing %q: %v", want, denylist)
		}
	}
	if _, ok := denylist["Admin"]; ok {
		t.Error("denylist kept mixed-case entry")
	}
}

func TestSwapIsAtomic(t *testing.T) {
	old := Current()
	defer Swap(old)

	// 并发读写不得读到撕裂的快照
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			Swap(&Settings{SlugLength: 7, GuardMaxAttempts: 5})
		}
	}()

	for i := 0; i < 100_000; i++ {
		s := Current()
		if s == nil {
			t.Fatal("Current returned nil")
		}
		if s.SlugLength != 7 {
			t.Fatalf("torn read: %+v", s)
		}
	}
	close(stop)
	wg.Wait()
}
