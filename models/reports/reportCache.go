package reports

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/jewelry_pos/config"
	"github.com/mmdatafocus/jewelry_pos/models"
	"github.com/mmdatafocus/jewelry_pos/utils"
	"github.com/sirupsen/logrus"
)

func reportCacheEnabled() bool {
	v := strings.TrimSpace(os.Getenv("ENABLE_REPORT_CACHE"))
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes") || strings.EqualFold(v, "on")
}

// Env: REPORT_CACHE_TTL_SECONDS (default 120s)
func reportCacheTTL() time.Duration {
	return envDuration("REPORT_CACHE_TTL_SECONDS", 120) * time.Second
}

// Env: REPORT_SLOW_MS (default 500ms)
func reportSlowThreshold() time.Duration {
	return envDuration("REPORT_SLOW_MS", 500) * time.Millisecond
}

func envDuration(name string, fallback int) time.Duration {
	n := fallback
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	return time.Duration(n)
}

func logSlowReport(ctx context.Context, name string, started time.Time) {
	d := time.Since(started)
	if d < reportSlowThreshold() {
		return
	}
	biz, _ := utils.GetBusinessIdFromContext(ctx)
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	config.GetLogger().WithFields(logrus.Fields{
		"field":          "slow_report",
		"report":         name,
		"ms":             d.Milliseconds(),
		"business_id":    biz,
		"correlation_id": cid,
	}).Warn("slow report")
}

// ChitStatsReport wraps models.ChitSummaryStats with an optional short-lived
// Redis cache keyed by business and hour.
func ChitStatsReport(ctx context.Context, now time.Time) (*models.ChitStats, error) {
	started := time.Now()
	defer logSlowReport(ctx, "chit_stats", started)

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, utils.ErrBusinessIdRequired
	}
	key := fmt.Sprintf("Report:ChitStats:%s:%s", businessId, now.UTC().Format("2006010215"))

	if reportCacheEnabled() {
		var cached models.ChitStats
		if hit, err := config.GetRedisObject(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}
	stats, err := models.ChitSummaryStats(ctx, now)
	if err != nil {
		return nil, err
	}
	if reportCacheEnabled() {
		if err := config.SetRedisObject(ctx, key, stats, reportCacheTTL()); err != nil {
			config.LogError(config.GetLogger(), "reports", "ChitStatsReport", "cache set", key, err)
		}
	}
	return stats, nil
}
