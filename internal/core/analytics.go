package core

import (
	"context"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/excel-analytics/internal/logging"
)

// TimeRange is the reporting window of the admin analytics.
type TimeRange string

const (
	Range7Days  TimeRange = "7d"
	Range30Days TimeRange = "30d"
	Range90Days TimeRange = "90d"
	Range1Year  TimeRange = "1y"
)

// TimeRanges lists every accepted TimeRange.
var TimeRanges = []TimeRange{Range7Days, Range30Days, Range90Days, Range1Year}

// ParseTimeRange maps a query value to a TimeRange. Unknown values mean
// the last 30 days.
func ParseTimeRange(s string) TimeRange {
	for _, r := range TimeRanges {
		if string(r) == s {
			return r
		}
	}
	return Range30Days
}

// Since returns the start of the window ending at now.
func (r TimeRange) Since(now time.Time) time.Time {
	switch r {
	case Range7Days:
		return now.AddDate(0, 0, -7)
	case Range90Days:
		return now.AddDate(0, 0, -90)
	case Range1Year:
		return now.AddDate(-1, 0, 0)
	default:
		return now.AddDate(0, 0, -30)
	}
}

const (
	analyticsActivityLimit = 20
	analyticsTopUsers      = 10
	analyticsCachePrefix   = "analytics:"
)

// AnalyticsStats are the headline counters.
type AnalyticsStats struct {
	TotalUsers   int64 `json:"totalUsers"`
	ActiveUsers  int64 `json:"activeUsers"` // logged in within 24h
	TotalUploads int64 `json:"totalUploads"`
	TotalCharts  int64 `json:"totalCharts"`
	RecentUsers  int64 `json:"recentUsers"` // joined within the range
	StorageUsed  int64 `json:"storageUsed"`
}

// AnalyticsCharts are the series behind the dashboard charts.
type AnalyticsCharts struct {
	UserGrowth            []DailyCount `json:"userGrowth"`
	UploadStats           []DailyCount `json:"uploadStats"`
	ChartTypeDistribution []TypeCount  `json:"chartTypeDistribution"`
}

// SystemMetrics describe this server process.
type SystemMetrics struct {
	MemoryUsage   int     `json:"memoryUsage"` // heap in use, percent of heap obtained
	HeapAlloc     uint64  `json:"heapAlloc"`
	Goroutines    int     `json:"goroutines"`
	NumGC         uint32  `json:"numGC"`
	StorageUsage  int64   `json:"storageUsage"`
	ActiveUploads int     `json:"activeUploads"`
	Uptime        float64 `json:"uptime"` // seconds
}

// Analytics is the admin dashboard payload.
type Analytics struct {
	Stats          AnalyticsStats  `json:"stats"`
	Charts         AnalyticsCharts `json:"charts"`
	RecentActivity []Activity      `json:"recentActivity"`
	TopUsers       []TopUser       `json:"topUsers"`
	SystemMetrics  SystemMetrics   `json:"systemMetrics"`
	TimeRange      TimeRange       `json:"timeRange"`
}

// Analytics gathers the dashboard for the given window. Everything but the
// system metrics may come from the cache.
func (s *Service) Analytics(ctx context.Context, r TimeRange) (*Analytics, error) {
	log := logging.WithFields(ctx, "time_range", r)
	key := analyticsCachePrefix + string(r)

	var a Analytics
	hit := false
	if s.cache != nil {
		var err error
		if hit, err = s.cache.Get(ctx, key, &a); err != nil {
			log.Warn("analytics cache read failed", "error", err)
			hit = false
		}
	}

	if !hit {
		fresh, err := s.collectAnalytics(ctx, r)
		if err != nil {
			return nil, err
		}
		a = *fresh
		if s.cache != nil {
			if err := s.cache.Set(ctx, key, a, s.cacheTTL); err != nil {
				log.Warn("analytics cache write failed", "error", err)
			}
		}
	}

	a.TimeRange = r
	a.SystemMetrics = s.systemMetrics(a.Stats.StorageUsed)
	return &a, nil
}

func (s *Service) collectAnalytics(ctx context.Context, r TimeRange) (*Analytics, error) {
	now := s.now()
	since := r.Since(now)
	a := &Analytics{TimeRange: r}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a.Stats.TotalUsers, err = s.store.CountUsers(gctx, UserCount{ActiveOnly: true})
		return err
	})
	g.Go(func() (err error) {
		a.Stats.ActiveUsers, err = s.store.CountUsers(gctx, UserCount{ActiveOnly: true, LoggedInSince: now.Add(-24 * time.Hour)})
		return err
	})
	g.Go(func() (err error) {
		a.Stats.RecentUsers, err = s.store.CountUsers(gctx, UserCount{ActiveOnly: true, CreatedSince: since})
		return err
	})
	g.Go(func() (err error) {
		a.Stats.TotalUploads, err = s.store.CountUploads(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		a.Stats.TotalCharts, err = s.store.CountCharts(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		a.Stats.StorageUsed, err = s.store.StorageUsed(gctx)
		return err
	})
	g.Go(func() (err error) {
		a.Charts.UserGrowth, err = s.store.UserGrowth(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		a.Charts.UploadStats, err = s.store.UploadStats(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		a.Charts.ChartTypeDistribution, err = s.store.ChartTypeDistribution(gctx)
		return err
	})
	g.Go(func() (err error) {
		a.RecentActivity, err = s.store.RecentActivity(gctx, "", analyticsActivityLimit)
		return err
	})
	g.Go(func() (err error) {
		a.TopUsers, err = s.store.TopUsers(gctx, since, analyticsTopUsers)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if a.Charts.UserGrowth == nil {
		a.Charts.UserGrowth = []DailyCount{}
	}
	if a.Charts.UploadStats == nil {
		a.Charts.UploadStats = []DailyCount{}
	}
	if a.Charts.ChartTypeDistribution == nil {
		a.Charts.ChartTypeDistribution = []TypeCount{}
	}
	if a.RecentActivity == nil {
		a.RecentActivity = []Activity{}
	}
	if a.TopUsers == nil {
		a.TopUsers = []TopUser{}
	}
	return a, nil
}

func (s *Service) systemMetrics(storage int64) SystemMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	usage := 0
	if ms.HeapSys > 0 {
		usage = int(math.Round(float64(ms.HeapInuse) / float64(ms.HeapSys) * 100))
	}
	return SystemMetrics{
		MemoryUsage:   usage,
		HeapAlloc:     ms.HeapAlloc,
		Goroutines:    runtime.NumGoroutine(),
		NumGC:         ms.NumGC,
		StorageUsage:  storage,
		ActiveUploads: s.limiter.ActiveCount(),
		Uptime:        time.Since(s.started).Seconds(),
	}
}

// invalidateAnalytics drops every cached dashboard after a write.
func (s *Service) invalidateAnalytics(ctx context.Context) {
	if s.cache == nil {
		return
	}
	keys := make([]string, len(TimeRanges))
	for i, r := range TimeRanges {
		keys[i] = analyticsCachePrefix + string(r)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		logging.FromContext(ctx).Warn("analytics cache invalidation failed", "error", err)
	}
}
