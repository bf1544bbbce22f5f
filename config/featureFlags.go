package config

import (
	"os"
	"strings"
	"time"
)

// LegacyCategoryScan keeps the validator's first tier: matching a category pair against
// the denormalized cost_code_id/cost_type_id columns of persisted items that were never
// promoted into allocation records.
//
// Set via env:
// - ALLOCATION_LEGACY_SCAN=false   (retire the tier once legacy rows are migrated)
func LegacyCategoryScan() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ALLOCATION_LEGACY_SCAN")))
	switch v {
	case "0", "false", "no", "n", "off":
		return false
	}
	return true
}

// CatalogSnapshotTTL bounds how long a project's catalog snapshot stays in redis.
//
// Set via env:
// - CATALOG_SNAPSHOT_TTL_MINUTES (default 720)
func CatalogSnapshotTTL() time.Duration {
	return time.Duration(intFromEnv("CATALOG_SNAPSHOT_TTL_MINUTES", 720)) * time.Minute
}

// SweepLockTTL is the redislock TTL for a contract save sweep.
//
// Set via env:
// - SWEEP_LOCK_TTL_SECONDS (default 120)
func SweepLockTTL() time.Duration {
	return time.Duration(intFromEnv("SWEEP_LOCK_TTL_SECONDS", 120)) * time.Second
}
