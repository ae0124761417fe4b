// Package entity defines the JSON response envelope and the server settings shape.
package entity

import (
	"net"
	"strings"

	"github.com/akellavk/V2RaySub/util/common"
)

// Msg is the envelope every JSON endpoint responds with.
type Msg struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Obj     any    `json:"obj,omitempty"`
}

// AllSetting is the complete server configuration. It is loaded from a TOML
// file when one is configured and each key can be overridden through a
// VSUB_* environment variable.
type AllSetting struct {
	Listen         string   `json:"listen" toml:"listen"`
	Port           int      `json:"port" toml:"port"`
	BasePath       string   `json:"basePath" toml:"base_path"`
	SubURI         string   `json:"subURI" toml:"sub_uri"`
	DBType         string   `json:"dbType" toml:"db_type"`
	DBPath         string   `json:"dbPath" toml:"db_path"`
	PgDsn          string   `json:"pgDsn" toml:"pg_dsn"`
	RequestTimeout int      `json:"requestTimeout" toml:"request_timeout"`
	SniMode        string   `json:"sniMode" toml:"sni_mode"`
	SniHosts       []string `json:"sniHosts" toml:"sni_hosts"`
	SniFile        string   `json:"sniFile" toml:"sni_file"`
	SniURL         string   `json:"sniURL" toml:"sni_url"`
	SniRefresh     int      `json:"sniRefresh" toml:"sni_refresh"`
	RedisAddr      string   `json:"redisAddr" toml:"redis_addr"`
	RedisPassword  string   `json:"redisPassword" toml:"redis_password"`
	RedisDB        int      `json:"redisDB" toml:"redis_db"`
	CacheTTL       int      `json:"cacheTTL" toml:"cache_ttl"`
}

// CheckValid validates the settings and normalizes BasePath to the
// /leading-and-trailing-slash/ form the router expects.
func (s *AllSetting) CheckValid() error {
	if s.Listen != "" {
		ip := net.ParseIP(s.Listen)
		if ip == nil {
			return common.NewError("listen is not a valid ip:", s.Listen)
		}
	}

	if s.Port <= 0 || s.Port > 65535 {
		return common.NewError("port is not a valid port:", s.Port)
	}

	switch s.DBType {
	case "sqlite", "postgres":
	default:
		return common.NewError("dbType must be sqlite or postgres:", s.DBType)
	}

	switch s.SniMode {
	case "static", "file", "url", "panel":
	default:
		return common.NewError("sniMode must be one of static, file, url, panel:", s.SniMode)
	}

	if s.RequestTimeout <= 0 {
		return common.NewError("requestTimeout must be positive:", s.RequestTimeout)
	}

	if !strings.HasPrefix(s.BasePath, "/") {
		s.BasePath = "/" + s.BasePath
	}
	if !strings.HasSuffix(s.BasePath, "/") {
		s.BasePath += "/"
	}

	return nil
}
