package service

import (
	"strings"
	"testing"
)

func TestGenerateSlug_Length(t *testing.T) {
	for _, length := range []int{4, 6, 7, 12, 32} {
		slug, err := GenerateSlug(length)
		if err != nil {
			t.Fatalf("generate error: %v", err)
		}
		if len(slug) != length {
			t.Errorf("GenerateSlug(%d) = %q, want %d chars", length, slug, length)
		}
	}
}

func TestGenerateSlug_DefaultLength(t *testing.T) {
	swapSettings(t, testSettings())

	slug, err := GenerateSlug(0)
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if len(slug) != 7 {
		t.Errorf("expected default length 7, got %d", len(slug))
	}
}

func TestGenerateSlug_Charset(t *testing.T) {
	for i := 0; i < 100; i++ {
		slug, err := GenerateSlug(16)
		if err != nil {
			t.Fatalf("generate error: %v", err)
		}
		for _, r := range slug {
			if !strings.ContainsRune(slugAlphabet, r) {
				t.Fatalf("slug %q contains character outside alphabet: %q", slug, r)
			}
		}
	}
}

func TestGenerateSlug_Unique(t *testing.T) {
	seen := make(map[string]bool)
	count := 10_000

	for i := 0; i < count; i++ {
		slug, err := GenerateSlug(12)
		if err != nil {
			t.Fatalf("generate error: %v", err)
		}
		if seen[slug] {
			t.Fatalf("duplicate slug %q at iteration %d", slug, i)
		}
		seen[slug] = true
	}
}

func TestValidateCustomSlug(t *testing.T) {
	swapSettings(t, testSettings())

	tests := []struct {
		slug    string
		wantErr bool
	}{
		{"promo", false},
		{"my-link_01", false},
		{"A", false},
		{"", true},
		{"has space", true},
		{"slash/inside", true},
		{"emoji✨", true},
		{"admin", true},   // 拒绝列表
		{"API", true},     // 拒绝列表不区分大小写
		{strings.Repeat("a", 33), true},
		{strings.Repeat("a", 32), false},
	}

	for _, tt := range tests {
		err := ValidateCustomSlug(tt.slug)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateCustomSlug(%q) error = %v, wantErr %v", tt.slug, err, tt.wantErr)
		}
	}
}
