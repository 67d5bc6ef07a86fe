package raw_test

import (
	"testing"

	"defectwatch/internal/platform/config/raw"
)

func TestGet(t *testing.T) {
	t.Setenv("DW_LOG_LEVEL", " debug ")
	cfg := raw.New().Prefix("DW_LOG_")

	if got := cfg.Get("LEVEL", "info"); got != "debug" {
		t.Fatalf("Get = %q, want trimmed value", got)
	}
	if got := cfg.Get("ABSENT", "info"); got != "info" {
		t.Fatalf("default = %q", got)
	}
}

func TestGetBool(t *testing.T) {
	cases := []struct {
		val  string
		want bool
	}{
		{"1", true},
		{"true", true},
		{"yes", true},
		{"0", false},
		{"no", false},
		{"garbage", false},
	}
	cfg := raw.New().Prefix("DW_LOG_")
	for _, tc := range cases {
		t.Setenv("DW_LOG_PRETTY", tc.val)
		if got := cfg.GetBool("PRETTY", false); got != tc.want {
			t.Fatalf("GetBool(%q) = %v, want %v", tc.val, got, tc.want)
		}
	}
	if !cfg.GetBool("ABSENT", true) {
		t.Fatal("absent key should return default")
	}
}

func TestGetInt(t *testing.T) {
	cfg := raw.New().Prefix("DW_LOG_")
	t.Setenv("DW_LOG_SAMPLE", "250")
	if got := cfg.GetInt("SAMPLE", 10); got != 250 {
		t.Fatalf("GetInt = %d", got)
	}
	t.Setenv("DW_LOG_SAMPLE", "no")
	if got := cfg.GetInt("SAMPLE", 10); got != 10 {
		t.Fatalf("invalid int fallback = %d", got)
	}
}
