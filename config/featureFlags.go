package config

import (
	"os"
	"strings"
)

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// SpoilageLiveStockFallback lets a spoilage request draw its shortfall from the shop's
// live stock pool once the shop stock entries for the item are exhausted.
//
// Set via env:
// - SPOILAGE_LIVE_STOCK_FALLBACK=true
func SpoilageLiveStockFallback() bool {
	return envBool("SPOILAGE_LIVE_STOCK_FALLBACK")
}

// ShopLocksEnabled wraps FIFO consumption in a best-effort redis lock per (shop, item).
// Row locks and conditional updates stay authoritative either way.
//
// Set via env:
// - SHOP_LOCKS_ENABLED=true
func ShopLocksEnabled() bool {
	return envBool("SHOP_LOCKS_ENABLED")
}

// SkipMigrations disables AutoMigrate on startup (cmd/seed-accounts --migrate runs it as a job).
func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS")
}
