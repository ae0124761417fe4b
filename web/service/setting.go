package service

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/akellavk/V2RaySub/config"
	"github.com/akellavk/V2RaySub/util/common"
	"github.com/akellavk/V2RaySub/web/entity"
)

var defaultValueMap = map[string]string{
	"listen":          "",
	"port":            "2096",
	"base_path":       "/sub/",
	"sub_uri":         "",
	"db_type":         "sqlite",
	"db_path":         "/etc/x-ui/x-ui.db",
	"pg_dsn":          "",
	"request_timeout": "5",
	"sni_mode":        "static",
	"sni_hosts":       "",
	"sni_file":        "",
	"sni_url":         "",
	"sni_refresh":     "60",
	"redis_addr":      "",
	"redis_password":  "",
	"redis_db":        "0",
	"cache_ttl":       "0",
}

var (
	settingsMu sync.Mutex
	fileValues map[string]string
	fileLoaded bool
)

// SettingService resolves server settings. Each key is read with the
// precedence environment variable > TOML file > built-in default, so the
// panel database never has to be written to hold our configuration.
type SettingService struct{}

// envKey maps a settings key to its environment override,
// e.g. "base_path" -> "VSUB_BASE_PATH".
func envKey(key string) string {
	return "VSUB_" + strings.ToUpper(key)
}

// flattenValue renders a decoded TOML value the way it would be written in
// an environment variable. Arrays become comma-separated lists.
func flattenValue(value any) string {
	if items, ok := value.([]any); ok {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(value)
}

func (s *SettingService) getFileValues() (map[string]string, error) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	if fileLoaded {
		return fileValues, nil
	}
	values := map[string]string{}
	confPath := config.GetConfFilePath()
	if confPath != "" {
		data, err := os.ReadFile(confPath)
		if err != nil {
			return nil, common.Combine("reading settings file failed", err)
		}
		var raw map[string]any
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, common.Combine("parsing settings file failed", err)
		}
		for key, value := range raw {
			values[key] = flattenValue(value)
		}
	}
	fileValues = values
	fileLoaded = true
	return fileValues, nil
}

// Reload drops the cached settings file so the next read parses it again.
func (s *SettingService) Reload() {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	fileLoaded = false
}

func (s *SettingService) getString(key string) (string, error) {
	if env, ok := os.LookupEnv(envKey(key)); ok {
		return env, nil
	}
	values, err := s.getFileValues()
	if err != nil {
		return "", err
	}
	if v, ok := values[key]; ok {
		return v, nil
	}
	value, ok := defaultValueMap[key]
	if !ok {
		return "", common.NewErrorf("key <%v> not in defaultValueMap", key)
	}
	return value, nil
}

func (s *SettingService) getInt(key string) (int, error) {
	str, err := s.getString(key)
	if err != nil {
		return 0, err
	}
	// An empty value means the key was set but left blank; fall back to the default.
	if str == "" {
		defaultValue, ok := defaultValueMap[key]
		if !ok {
			return 0, common.NewErrorf("key <%v> not in defaultValueMap", key)
		}
		return strconv.Atoi(defaultValue)
	}
	return strconv.Atoi(str)
}

func (s *SettingService) getSlice(key string) ([]string, error) {
	str, err := s.getString(key)
	if err != nil {
		return nil, err
	}
	items := make([]string, 0)
	for _, part := range strings.Split(str, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	return items, nil
}

func (s *SettingService) GetListen() (string, error) {
	return s.getString("listen")
}

func (s *SettingService) GetPort() (int, error) {
	return s.getInt("port")
}

func (s *SettingService) GetBasePath() (string, error) {
	basePath, err := s.getString("base_path")
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	return basePath, nil
}

func (s *SettingService) GetSubURI() (string, error) {
	return s.getString("sub_uri")
}

func (s *SettingService) GetDBType() (string, error) {
	return s.getString("db_type")
}

func (s *SettingService) GetDBPath() (string, error) {
	return s.getString("db_path")
}

func (s *SettingService) GetPgDsn() (string, error) {
	return s.getString("pg_dsn")
}

// GetTimeout returns the upper bound a single panel database lookup may take.
func (s *SettingService) GetTimeout() (time.Duration, error) {
	seconds, err := s.getInt("request_timeout")
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

func (s *SettingService) GetSniMode() (string, error) {
	return s.getString("sni_mode")
}

func (s *SettingService) GetSniHosts() ([]string, error) {
	return s.getSlice("sni_hosts")
}

func (s *SettingService) GetSniFile() (string, error) {
	return s.getString("sni_file")
}

func (s *SettingService) GetSniURL() (string, error) {
	return s.getString("sni_url")
}

// GetSniRefresh returns the pool refresh period in minutes, 0 disables the job.
func (s *SettingService) GetSniRefresh() (int, error) {
	return s.getInt("sni_refresh")
}

func (s *SettingService) GetRedisAddr() (string, error) {
	return s.getString("redis_addr")
}

func (s *SettingService) GetRedisPassword() (string, error) {
	return s.getString("redis_password")
}

func (s *SettingService) GetRedisDB() (int, error) {
	return s.getInt("redis_db")
}

// GetCacheTTL returns how long an assembled subscription may be served from
// cache, 0 disables caching.
func (s *SettingService) GetCacheTTL() (time.Duration, error) {
	seconds, err := s.getInt("cache_ttl")
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

// GetAllSetting returns the fully resolved configuration, validated and with
// BasePath normalized.
func (s *SettingService) GetAllSetting() (*entity.AllSetting, error) {
	allSetting := &entity.AllSetting{}
	var err error

	if allSetting.Listen, err = s.GetListen(); err != nil {
		return nil, err
	}
	if allSetting.Port, err = s.GetPort(); err != nil {
		return nil, err
	}
	if allSetting.BasePath, err = s.getString("base_path"); err != nil {
		return nil, err
	}
	if allSetting.SubURI, err = s.GetSubURI(); err != nil {
		return nil, err
	}
	if allSetting.DBType, err = s.GetDBType(); err != nil {
		return nil, err
	}
	if allSetting.DBPath, err = s.GetDBPath(); err != nil {
		return nil, err
	}
	if allSetting.PgDsn, err = s.GetPgDsn(); err != nil {
		return nil, err
	}
	if allSetting.RequestTimeout, err = s.getInt("request_timeout"); err != nil {
		return nil, err
	}
	if allSetting.SniMode, err = s.GetSniMode(); err != nil {
		return nil, err
	}
	if allSetting.SniHosts, err = s.GetSniHosts(); err != nil {
		return nil, err
	}
	if allSetting.SniFile, err = s.GetSniFile(); err != nil {
		return nil, err
	}
	if allSetting.SniURL, err = s.GetSniURL(); err != nil {
		return nil, err
	}
	if allSetting.SniRefresh, err = s.GetSniRefresh(); err != nil {
		return nil, err
	}
	if allSetting.RedisAddr, err = s.GetRedisAddr(); err != nil {
		return nil, err
	}
	if allSetting.RedisPassword, err = s.GetRedisPassword(); err != nil {
		return nil, err
	}
	if allSetting.RedisDB, err = s.GetRedisDB(); err != nil {
		return nil, err
	}
	if allSetting.CacheTTL, err = s.getInt("cache_ttl"); err != nil {
		return nil, err
	}

	if err := allSetting.CheckValid(); err != nil {
		return nil, err
	}
	return allSetting, nil
}
