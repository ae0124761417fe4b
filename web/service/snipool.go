package service

import (
	"os"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"github.com/akellavk/V2RaySub/logger"
	"github.com/akellavk/V2RaySub/util/common"
	"github.com/akellavk/V2RaySub/web/cache"
)

var (
	poolMu     sync.RWMutex
	activePool []string
)

// SniPoolService resolves the process-wide SNI pool and holds the active
// copy. In static, file and url modes the pool is loaded at startup and
// refreshed by the cron job or a SIGHUP; in panel mode there is no shared
// pool and PoolForRecord derives one per request.
type SniPoolService struct {
	settingService SettingService
}

// GetPool returns the active pool. The slice is shared, callers must treat
// it as read-only.
func (s *SniPoolService) GetPool() []string {
	poolMu.RLock()
	defer poolMu.RUnlock()
	return activePool
}

// Refresh resolves the pool from its configured source and swaps it in.
// When the source fails the previous pool stays active, so a flaky list URL
// degrades to stale entries instead of an empty subscription.
func (s *SniPoolService) Refresh() error {
	mode, err := s.settingService.GetSniMode()
	if err != nil {
		return err
	}

	var hosts []string
	switch mode {
	case "static":
		hosts, err = s.settingService.GetSniHosts()
	case "file":
		hosts, err = s.loadFile()
	case "url":
		hosts, err = s.loadURL()
	case "panel":
		// Pools are derived per request from the client's own inbounds;
		// clear the shared pool so it cannot report hosts left over from a
		// previous mode.
		s.setPool(nil)
		return nil
	default:
		err = common.NewErrorf("unknown sni mode <%v>", mode)
	}
	if err != nil {
		return err
	}

	s.setPool(hosts)
	return nil
}

func (s *SniPoolService) loadFile() ([]string, error) {
	path, err := s.settingService.GetSniFile()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, common.NewError("sni mode is file but sni_file is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.Combine("reading sni list file failed", err)
	}
	return ParseHostLines(string(data)), nil
}

func (s *SniPoolService) loadURL() ([]string, error) {
	listURL, err := s.settingService.GetSniURL()
	if err != nil {
		return nil, err
	}
	if listURL == "" {
		return nil, common.NewError("sni mode is url but sni_url is empty")
	}
	timeout, err := s.settingService.GetTimeout()
	if err != nil {
		return nil, err
	}
	statusCode, body, err := fasthttp.GetTimeout(nil, listURL, timeout)
	if err != nil {
		return nil, common.Combine("fetching sni list failed", err)
	}
	if statusCode != fasthttp.StatusOK {
		return nil, common.NewErrorf("fetching sni list failed: status %d", statusCode)
	}
	return ParseHostLines(string(body)), nil
}

// setPool installs hosts as the active pool. Cached subscription bodies
// embed pool entries, so a changed pool drops them all.
func (s *SniPoolService) setPool(hosts []string) {
	poolMu.Lock()
	changed := !equalPool(activePool, hosts)
	activePool = hosts
	poolMu.Unlock()

	if changed {
		cache.InvalidateSubs()
		logger.Infof("sni pool updated, %d entries", len(hosts))
	}
}

func equalPool(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ParseHostLines turns a list file or response body into pool entries: one
// host per line, order preserved, blank lines and #-comments ignored.
func ParseHostLines(text string) []string {
	hosts := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		hosts = append(hosts, line)
	}
	return hosts
}

type realityStream struct {
	RealitySettings struct {
		ServerNames []string `json:"serverNames"`
	} `json:"realitySettings"`
}

// PoolForRecord derives a pool from the record's own inbounds in panel
// mode: every realitySettings server name, inbound order then array order,
// de-duplicated first-wins.
func (s *SniPoolService) PoolForRecord(record *ClientRecord) []string {
	hosts := make([]string, 0)
	seen := make(map[string]bool)
	for _, entry := range record.Entries {
		var stream realityStream
		if err := json.Unmarshal([]byte(entry.Inbound.StreamSettings), &stream); err != nil {
			continue
		}
		for _, name := range stream.RealitySettings.ServerNames {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			hosts = append(hosts, name)
		}
	}
	return hosts
}
