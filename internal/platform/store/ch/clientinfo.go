package ch

import (
	"os"
	"runtime"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// BuildClientInfo returns a ClientInfo describing this process and role
// role examples: "api", "nightwatch"
func BuildClientInfo(role, app string) clickhouse.ClientInfo {
	host, _ := os.Hostname()
	if app == "" {
		app = "defectwatch"
	}

	type kv = struct{ Name, Version string }

	products := []kv{
		{Name: safe(app), Version: "1"},
		{Name: "role", Version: safe(role)},
		{Name: "go", Version: safe(runtime.Version())},
		{Name: "host", Version: safe(host)},
	}

	return clickhouse.ClientInfo{Products: products}
}

func safe(s string) string {
	return strings.TrimSpace(s)
}
