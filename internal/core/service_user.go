package core

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// UserStats is the dashboard summary of one user.
type UserStats struct {
	TotalUploads   int64      `json:"totalUploads"`
	TotalCharts    int64      `json:"totalCharts"`
	RecentActivity []Activity `json:"recentActivity"`
}

// Stats summarizes a user's active uploads, charts and latest activity.
func (s *Service) Stats(ctx context.Context, userID string) (*UserStats, error) {
	var st UserStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.TotalUploads, err = s.store.CountUploads(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		st.TotalCharts, err = s.store.CountCharts(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		st.RecentActivity, err = s.store.RecentActivity(gctx, userID, DefaultActivityLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if st.RecentActivity == nil {
		st.RecentActivity = []Activity{}
	}
	return &st, nil
}
