package controller

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/akellavk/V2RaySub/logger"
	"github.com/akellavk/V2RaySub/web/entity"
)

func jsonMsg(c *gin.Context, msg string, err error) {
	jsonMsgObj(c, msg, nil, err)
}

func jsonObj(c *gin.Context, obj any, err error) {
	jsonMsgObj(c, "", obj, err)
}

// jsonMsgObj writes the standard response envelope. The error itself is
// logged but never echoed to the caller.
func jsonMsgObj(c *gin.Context, msg string, obj any, err error) {
	m := entity.Msg{
		Success: true,
		Msg:     msg,
		Obj:     obj,
	}
	if err != nil {
		m.Success = false
		m.Msg = msg + " failed"
		logger.Warning(msg, "failed:", err)
	}
	c.JSON(http.StatusOK, m)
}

// hostName returns the request's host with any port stripped, for use as
// the wildcard-bind fallback address in links.
func hostName(c *gin.Context) string {
	if host, _, err := net.SplitHostPort(c.Request.Host); err == nil {
		return host
	}
	return c.Request.Host
}

// scheme resolves the external scheme, trusting a reverse proxy's
// X-Forwarded-Proto when present.
func scheme(c *gin.Context) string {
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		return proto
	}
	if c.Request.TLS != nil {
		return "https"
	}
	return "http"
}
