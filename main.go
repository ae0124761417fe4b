package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/op/go-logging"

	"github.com/akellavk/V2RaySub/config"
	"github.com/akellavk/V2RaySub/database"
	"github.com/akellavk/V2RaySub/logger"
	"github.com/akellavk/V2RaySub/web"
	"github.com/akellavk/V2RaySub/web/cache"
	"github.com/akellavk/V2RaySub/web/service"
)

func runWebServer() {
	switch config.GetLogLevel() {
	case config.Debug:
		logger.InitLogger(logging.DEBUG)
	case config.Info:
		logger.InitLogger(logging.INFO)
	case config.Warn:
		logger.InitLogger(logging.WARNING)
	case config.Error:
		logger.InitLogger(logging.ERROR)
	default:
		fmt.Println("unknown log level:", config.GetLogLevel())
		os.Exit(1)
	}

	settingService := service.SettingService{}
	allSetting, err := settingService.GetAllSetting()
	if err != nil {
		logger.Error("load settings failed:", err)
		os.Exit(1)
	}

	dsn := allSetting.DBPath
	if allSetting.DBType == "postgres" {
		dsn = allSetting.PgDsn
	}
	if err := database.InitDB(allSetting.DBType, dsn); err != nil {
		logger.Error("open panel database failed:", err)
		os.Exit(1)
	}

	cache.Init(allSetting.RedisAddr, allSetting.RedisPassword, allSetting.RedisDB)

	server := web.NewServer()
	if err := server.Start(); err != nil {
		logger.Error("start web server failed:", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			logger.Info("received SIGHUP, refreshing sni pool")
			if err := server.RefreshPool(); err != nil {
				logger.Warning("pool refresh failed:", err)
			}
		default:
			logger.Infof("received %v, shutting down", sig)
			if err := server.Stop(); err != nil {
				logger.Warning("shutdown:", err)
			}
			cache.Close()
			if err := database.CloseDB(); err != nil {
				logger.Warning("close panel database:", err)
			}
			return
		}
	}
}

func main() {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	var showVersion bool
	var confFile string
	flag.BoolVar(&showVersion, "v", false, "show version")
	flag.StringVar(&confFile, "config", "", "path of the TOML configuration file")
	flag.Parse()

	if showVersion {
		fmt.Println(config.GetVersion())
		return
	}
	if confFile != "" {
		os.Setenv("VSUB_CONF_FILE", confFile)
	}

	runWebServer()
}
