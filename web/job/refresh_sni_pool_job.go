// Package job provides the background jobs the web server schedules.
package job

import (
	"github.com/akellavk/V2RaySub/logger"
	"github.com/akellavk/V2RaySub/util/common"
	"github.com/akellavk/V2RaySub/web/service"
)

// RefreshSniPoolJob reloads the SNI pool from its configured source so file
// and url pools track their backing list without a restart.
type RefreshSniPoolJob struct {
	snipoolService service.SniPoolService
}

// NewRefreshSniPoolJob creates a new pool refresh job instance.
func NewRefreshSniPoolJob() *RefreshSniPoolJob {
	return new(RefreshSniPoolJob)
}

// Run refreshes the pool. On failure the previous pool stays active.
func (j *RefreshSniPoolJob) Run() {
	defer common.Recover("refresh sni pool job")
	if err := j.snipoolService.Refresh(); err != nil {
		logger.Warning("sni pool refresh failed:", err)
	}
}
