package config_test

import (
	"testing"
	"time"

	"defectwatch/internal/platform/config"
	"defectwatch/internal/platform/testkit"
)

func TestPrefixNesting(t *testing.T) {
	t.Setenv("DW_ML_REGISTRY_DIR", "/var/lib/defectwatch")

	root := config.New()
	if got := root.MayString("DW_ML_REGISTRY_DIR", ""); got != "/var/lib/defectwatch" {
		t.Fatalf("root read = %q", got)
	}

	ml := root.Prefix("DW_").Prefix("ML_")
	if got := ml.MayString("REGISTRY_DIR", ""); got != "/var/lib/defectwatch" {
		t.Fatalf("nested prefix read = %q", got)
	}
}

func TestMustStringPanicsWhenMissing(t *testing.T) {
	cfg := config.New().Prefix("DW_TEST_MISSING_")
	testkit.MustPanic(t, func() { cfg.MustString("DBURL") })
}

func TestMayIntDefaults(t *testing.T) {
	cfg := config.New().Prefix("DW_TEST_")

	if got := cfg.MayInt("ABSENT", 7); got != 7 {
		t.Fatalf("absent = %d", got)
	}

	t.Setenv("DW_TEST_CONNS", "12")
	if got := cfg.MayInt("CONNS", 7); got != 12 {
		t.Fatalf("set = %d", got)
	}

	t.Setenv("DW_TEST_BADINT", "twelve")
	if got := cfg.MayInt("BADINT", 7); got != 7 {
		t.Fatalf("invalid should fall back, got %d", got)
	}
}

func TestMayFloat64(t *testing.T) {
	cfg := config.New().Prefix("DW_TEST_")
	t.Setenv("DW_TEST_CONTAMINATION", "0.12")
	if got := cfg.MayFloat64("CONTAMINATION", 0.08); got != 0.12 {
		t.Fatalf("float = %v", got)
	}
	if got := cfg.MayFloat64("CONTAM_ABSENT", 0.08); got != 0.08 {
		t.Fatalf("default = %v", got)
	}
}

func TestMayBoolAndDuration(t *testing.T) {
	cfg := config.New().Prefix("DW_TEST_")

	t.Setenv("DW_TEST_ENABLED", "false")
	if cfg.MayBool("ENABLED", true) {
		t.Fatal("explicit false ignored")
	}
	t.Setenv("DW_TEST_BADBOOL", "yep")
	if !cfg.MayBool("BADBOOL", true) {
		t.Fatal("invalid bool should fall back to default")
	}

	t.Setenv("DW_TEST_TICK", "30s")
	if got := cfg.MayDuration("TICK", time.Minute); got != 30*time.Second {
		t.Fatalf("duration = %v", got)
	}
}

func TestMustPort(t *testing.T) {
	t.Setenv("DW_TEST_PORT", "4720")
	cfg := config.New().Prefix("DW_TEST_")
	if got := cfg.MustPort("PORT"); got != ":4720" {
		t.Fatalf("port = %q", got)
	}

	t.Setenv("DW_TEST_PORT", "99999")
	testkit.MustPanic(t, func() { cfg.MustPort("PORT") })
}
