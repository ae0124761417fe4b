package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/akellavk/V2RaySub/logger"
	"github.com/akellavk/V2RaySub/web/service"
)

// ServerController exposes the status and pool maintenance endpoints.
type ServerController struct {
	serverService  service.ServerService
	snipoolService service.SniPoolService
	settingService service.SettingService
}

// NewServerController creates a new ServerController and sets up its routes.
func NewServerController(g *gin.RouterGroup) *ServerController {
	a := &ServerController{}
	a.initRouter(g)
	return a
}

func (a *ServerController) initRouter(g *gin.RouterGroup) {
	g.GET("/status", a.status)
	g.GET("/debug/sni", a.sniPool)
	g.POST("/reload", a.reload)
}

func (a *ServerController) status(c *gin.Context) {
	jsonObj(c, a.serverService.GetStatus(), nil)
}

// sniPool returns the active pool. In panel mode the shared pool is empty
// because pools are derived per request; the mode field says so.
func (a *ServerController) sniPool(c *gin.Context) {
	mode, err := a.settingService.GetSniMode()
	if err != nil {
		jsonMsg(c, "Read sni mode", err)
		return
	}
	jsonObj(c, gin.H{
		"mode":  mode,
		"hosts": a.snipoolService.GetPool(),
	}, nil)
}

// reload re-reads the settings file and refreshes the pool immediately.
func (a *ServerController) reload(c *gin.Context) {
	a.settingService.Reload()
	if err := a.snipoolService.Refresh(); err != nil {
		logger.Errorf("pool refresh failed: %v", err)
		jsonMsg(c, "Pool refresh", err)
		return
	}
	jsonMsg(c, "Pool refreshed", nil)
}
