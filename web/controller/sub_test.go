package controller

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/akellavk/V2RaySub/database"
	"github.com/akellavk/V2RaySub/database/model"
	"github.com/akellavk/V2RaySub/web/entity"
	"github.com/akellavk/V2RaySub/web/service"
)

const testSubID = "uhzb35qqnojqorbk"

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "x-ui.db")
	if err := database.InitDB("sqlite", dbPath); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { database.CloseDB() })

	t.Setenv("VSUB_SNI_MODE", "static")
	t.Setenv("VSUB_SNI_HOSTS", "a.cdn.example,b.cdn.example")
	snipoolService := service.SniPoolService{}
	if err := snipoolService.Refresh(); err != nil {
		t.Fatalf("pool refresh failed: %v", err)
	}

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	NewSubController(engine.Group("/sub/"))
	NewServerController(engine.Group("/"))
	return engine
}

func createTestInbound(t *testing.T) {
	t.Helper()
	inbound := &model.Inbound{
		Remark:         "edge",
		Enable:         true,
		Port:           443,
		Protocol:       model.VLESS,
		Tag:            "vless-controller-test",
		Settings:       `{"clients":[{"id":"11111111-1111-1111-1111-111111111111","email":"u@example.com","enable":true,"subId":"` + testSubID + `","totalGB":1073741824}]}`,
		StreamSettings: `{"network":"tcp","security":"tls","tlsSettings":{"serverName":"example.com"}}`,
	}
	if err := database.GetDB().Create(inbound).Error; err != nil {
		t.Fatalf("create inbound failed: %v", err)
	}
}

func doRequest(engine *gin.Engine, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.Host = "example.com:2096"
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestGetSubscriptionEndpoint(t *testing.T) {
	engine := setupRouter(t)
	createTestInbound(t)

	w := doRequest(engine, http.MethodGet, "/sub/"+testSubID)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain content type, got %q", ct)
	}
	if info := w.Header().Get("Subscription-Userinfo"); !strings.Contains(info, "total=1073741824") {
		t.Fatalf("expected traffic header with quota, got %q", info)
	}

	raw, err := base64.StdEncoding.DecodeString(w.Body.String())
	if err != nil {
		t.Fatalf("body is not valid base64: %v", err)
	}
	links := strings.Split(string(raw), "\n")
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	for _, link := range links {
		if !strings.HasPrefix(link, "vless://") {
			t.Fatalf("expected vless link, got %q", link)
		}
	}
}

func TestGetSubscriptionUnknownId(t *testing.T) {
	engine := setupRouter(t)
	createTestInbound(t)

	w := doRequest(engine, http.MethodGet, "/sub/some-other-id")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("expected empty 404 body, got %q", w.Body.String())
	}
}

func TestGetSubscriptionBackendUnavailable(t *testing.T) {
	engine := setupRouter(t)
	createTestInbound(t)
	if err := database.CloseDB(); err != nil {
		t.Fatalf("close database failed: %v", err)
	}

	w := doRequest(engine, http.MethodGet, "/sub/"+testSubID)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the panel store is unreachable, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("expected empty 503 body, got %q", w.Body.String())
	}
}

func TestGetSubscriptionStoreTimeout(t *testing.T) {
	engine := setupRouter(t)
	createTestInbound(t)

	// A zero timeout expires the read context before the store is queried.
	t.Setenv("VSUB_REQUEST_TIMEOUT", "0")
	w := doRequest(engine, http.MethodGet, "/sub/"+testSubID)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the store read times out, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("expected empty 503 body, got %q", w.Body.String())
	}
}

func TestGetQrCodeEndpoint(t *testing.T) {
	engine := setupRouter(t)
	createTestInbound(t)

	w := doRequest(engine, http.MethodGet, "/sub/"+testSubID+"/qr")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Fatalf("expected png bytes")
	}

	w = doRequest(engine, http.MethodGet, "/sub/some-other-id/qr")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", w.Code)
	}
}

func TestDebugSniEndpoint(t *testing.T) {
	engine := setupRouter(t)

	w := doRequest(engine, http.MethodGet, "/debug/sni")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var msg entity.Msg
	if err := json.Unmarshal(w.Body.Bytes(), &msg); err != nil {
		t.Fatalf("response is not the standard envelope: %v", err)
	}
	if !msg.Success {
		t.Fatalf("expected success, got %+v", msg)
	}
	obj, ok := msg.Obj.(map[string]any)
	if !ok {
		t.Fatalf("expected object payload, got %T", msg.Obj)
	}
	if obj["mode"] != "static" {
		t.Fatalf("expected static mode, got %v", obj["mode"])
	}
	hosts, ok := obj["hosts"].([]any)
	if !ok || len(hosts) != 2 {
		t.Fatalf("expected 2 pool hosts, got %v", obj["hosts"])
	}
}

func TestReloadEndpoint(t *testing.T) {
	engine := setupRouter(t)

	t.Setenv("VSUB_SNI_HOSTS", "fresh.cdn.example")
	w := doRequest(engine, http.MethodPost, "/reload")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	snipoolService := service.SniPoolService{}
	pool := snipoolService.GetPool()
	if len(pool) != 1 || pool[0] != "fresh.cdn.example" {
		t.Fatalf("expected reload to pick up the new pool, got %v", pool)
	}
}

func TestStatusEndpoint(t *testing.T) {
	engine := setupRouter(t)

	w := doRequest(engine, http.MethodGet, "/status")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var msg entity.Msg
	if err := json.Unmarshal(w.Body.Bytes(), &msg); err != nil {
		t.Fatalf("response is not the standard envelope: %v", err)
	}
	obj, ok := msg.Obj.(map[string]any)
	if !ok {
		t.Fatalf("expected object payload, got %T", msg.Obj)
	}
	if obj["appName"] != "v2raysub" {
		t.Fatalf("expected app name v2raysub, got %v", obj["appName"])
	}
	if _, ok := obj["uptime"]; !ok {
		t.Fatalf("expected uptime field, got %v", obj)
	}
}
