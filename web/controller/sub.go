// Package controller provides the HTTP handlers of the subscription server.
package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"github.com/akellavk/V2RaySub/database"
	"github.com/akellavk/V2RaySub/logger"
	"github.com/akellavk/V2RaySub/web/service"
)

// SubController serves subscription bodies and their QR codes.
type SubController struct {
	subService     service.SubService
	settingService service.SettingService
}

// NewSubController creates a new SubController and sets up its routes.
func NewSubController(g *gin.RouterGroup) *SubController {
	a := &SubController{}
	a.initRouter(g)
	return a
}

func (a *SubController) initRouter(g *gin.RouterGroup) {
	g.GET(":subId", a.getSubscription)
	g.GET(":subId/qr", a.getQrCode)
}

// getSubscription renders the subscription body for one id. Unknown ids get
// a bare 404, a failing panel store a bare 503; neither response carries
// internal detail.
func (a *SubController) getSubscription(c *gin.Context) {
	subId := c.Param("subId")
	sub, ok := a.loadSubscription(c, subId)
	if !ok {
		return
	}
	if sub.UserInfo != "" {
		c.Header("Subscription-Userinfo", sub.UserInfo)
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(sub.Body))
}

// getQrCode renders the subscription URL as a PNG QR code, after confirming
// the subscription exists so unknown ids still 404.
func (a *SubController) getQrCode(c *gin.Context) {
	subId := c.Param("subId")
	if _, ok := a.loadSubscription(c, subId); !ok {
		return
	}

	subURL, err := a.subService.SubURL(subId, scheme(c), c.Request.Host)
	if err != nil {
		logger.Errorf("subscription %s: build url failed: %v", subId, err)
		c.Status(http.StatusInternalServerError)
		return
	}
	png, err := qrcode.Encode(subURL, qrcode.Medium, 256)
	if err != nil {
		logger.Errorf("subscription %s: render qr failed: %v", subId, err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// loadSubscription fetches the assembled subscription under the configured
// panel read timeout, writing the error status itself when the fetch fails.
func (a *SubController) loadSubscription(c *gin.Context, subId string) (*service.Subscription, bool) {
	timeout, err := a.settingService.GetTimeout()
	if err != nil {
		logger.Error("read request timeout setting failed:", err)
		c.Status(http.StatusInternalServerError)
		return nil, false
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	sub, err := a.subService.GetSubscription(ctx, subId, hostName(c))
	if err != nil {
		if database.IsNotFound(err) {
			c.Status(http.StatusNotFound)
			return nil, false
		}
		logger.Errorf("subscription %s failed: %v", subId, err)
		c.Status(http.StatusServiceUnavailable)
		return nil, false
	}
	return sub, true
}
