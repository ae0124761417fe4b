package service

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/akellavk/V2RaySub/config"
	"github.com/akellavk/V2RaySub/logger"
	"github.com/akellavk/V2RaySub/web/cache"
)

var startTime = time.Now()

// Status is the snapshot /status responds with. It carries process health
// and counters only, never client data.
type Status struct {
	AppName    string  `json:"appName"`
	AppVersion string  `json:"appVersion"`
	Uptime     int64   `json:"uptime"`
	Cpu        float64 `json:"cpu"`
	Mem        struct {
		Current uint64 `json:"current"`
		Total   uint64 `json:"total"`
	} `json:"mem"`
	Goroutines  int      `json:"goroutines"`
	Served      int64    `json:"served"`
	Skipped     int64    `json:"skipped"`
	CacheHits   int64    `json:"cacheHits"`
	CacheMisses int64    `json:"cacheMisses"`
	Logs        []string `json:"logs"`
}

// ServerService reports process status for the status endpoint.
type ServerService struct{}

// GetStatus collects the current process snapshot. Metric collection
// failures are logged and leave the field at zero rather than failing the
// endpoint.
func (s *ServerService) GetStatus() *Status {
	status := &Status{
		AppName:    config.GetName(),
		AppVersion: config.GetVersion(),
		Uptime:     int64(time.Since(startTime).Seconds()),
		Goroutines: runtime.NumGoroutine(),
	}

	percents, err := cpu.Percent(0, false)
	if err != nil {
		logger.Warning("get cpu percent failed:", err)
	} else if len(percents) > 0 {
		status.Cpu = percents[0]
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		logger.Warning("get memory info failed:", err)
	} else {
		status.Mem.Current = memInfo.Used
		status.Mem.Total = memInfo.Total
	}

	status.Served, status.Skipped = SubStats()
	status.CacheHits, status.CacheMisses = cache.Stats()
	status.Logs = logger.GetLogs(20, "info")
	return status
}
