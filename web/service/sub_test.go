package service

import (
	"context"
	"encoding/base64"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akellavk/V2RaySub/database"
	"github.com/akellavk/V2RaySub/database/model"
	"github.com/akellavk/V2RaySub/xray"
)

const testSubID = "uhzb35qqnojqorbk"

func setupPanelDB(t *testing.T) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "x-ui.db")
	if err := database.InitDB("sqlite", dbPath); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { database.CloseDB() })
}

func setStaticPool(t *testing.T, hosts string) {
	t.Helper()
	t.Setenv("VSUB_SNI_MODE", "static")
	t.Setenv("VSUB_SNI_HOSTS", hosts)
	snipoolService := SniPoolService{}
	if err := snipoolService.Refresh(); err != nil {
		t.Fatalf("pool refresh failed: %v", err)
	}
}

func createInbound(t *testing.T, inbound *model.Inbound) {
	t.Helper()
	if err := database.GetDB().Create(inbound).Error; err != nil {
		t.Fatalf("create inbound failed: %v", err)
	}
}

func vlessFixture(tag string) *model.Inbound {
	return &model.Inbound{
		Remark:         "edge",
		Enable:         true,
		Port:           443,
		Protocol:       model.VLESS,
		Tag:            tag,
		Settings:       `{"clients":[{"id":"11111111-1111-1111-1111-111111111111","email":"u@example.com","enable":true,"subId":"` + testSubID + `"}]}`,
		StreamSettings: `{"network":"tcp","security":"tls","tlsSettings":{"serverName":"example.com"}}`,
	}
}

func decodeBody(t *testing.T, body string) []string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		t.Fatalf("body is not valid base64: %v", err)
	}
	if len(raw) == 0 {
		return nil
	}
	return strings.Split(string(raw), "\n")
}

func TestGetSubscriptionExpandsPool(t *testing.T) {
	setupPanelDB(t)
	setStaticPool(t, "a.cdn.example,b.cdn.example")
	createInbound(t, vlessFixture("vless-example"))

	subService := SubService{}
	sub, err := subService.GetSubscription(context.Background(), testSubID, "example.com")
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}

	links := decodeBody(t, sub.Body)
	if len(links) != 2 {
		t.Fatalf("expected 1 inbound x 2 pool hosts = 2 links, got %d", len(links))
	}
	wantSni := []string{"a.cdn.example", "b.cdn.example"}
	for i, link := range links {
		u, err := url.Parse(link)
		if err != nil {
			t.Fatalf("link %d does not parse: %v", i, err)
		}
		if u.Scheme != "vless" {
			t.Fatalf("expected vless link, got %q", link)
		}
		if u.User.Username() != "11111111-1111-1111-1111-111111111111" {
			t.Fatalf("uuid altered in link %d: %q", i, u.User.Username())
		}
		if u.Hostname() != "example.com" || u.Port() != "443" {
			t.Fatalf("host altered in link %d: %s:%s", i, u.Hostname(), u.Port())
		}
		if got := u.Query().Get("sni"); got != wantSni[i] {
			t.Fatalf("link %d: expected sni %q, got %q", i, wantSni[i], got)
		}
		if !strings.HasSuffix(u.Fragment, "sni:"+wantSni[i]) {
			t.Fatalf("link %d: expected remark labeled with pool host, got %q", i, u.Fragment)
		}
	}
	if sub.UserInfo != "" {
		t.Fatalf("expected no traffic header without limits, got %q", sub.UserInfo)
	}
}

func TestGetSubscriptionNotFound(t *testing.T) {
	setupPanelDB(t)
	setStaticPool(t, "a.cdn.example")

	subService := SubService{}
	_, err := subService.GetSubscription(context.Background(), "no-such-sub", "example.com")
	if !database.IsNotFound(err) {
		t.Fatalf("expected record-not-found, got %v", err)
	}
}

func TestGetSubscriptionDisabledClient(t *testing.T) {
	setupPanelDB(t)
	setStaticPool(t, "a.cdn.example")

	inbound := vlessFixture("vless-disabled")
	inbound.Settings = strings.Replace(inbound.Settings, `"enable":true`, `"enable":false`, 1)
	createInbound(t, inbound)

	subService := SubService{}
	_, err := subService.GetSubscription(context.Background(), testSubID, "example.com")
	if !database.IsNotFound(err) {
		t.Fatalf("expected disabled client to read as not found, got %v", err)
	}
}

func TestGetSubscriptionSkipsMalformedInbound(t *testing.T) {
	setupPanelDB(t)
	setStaticPool(t, "a.cdn.example,b.cdn.example")

	broken := vlessFixture("vless-broken")
	broken.StreamSettings = `{"network": `
	createInbound(t, broken)
	createInbound(t, vlessFixture("vless-ok"))

	subService := SubService{}
	sub, err := subService.GetSubscription(context.Background(), testSubID, "example.com")
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}
	if links := decodeBody(t, sub.Body); len(links) != 2 {
		t.Fatalf("expected the valid inbound to still contribute 2 links, got %d", len(links))
	}
}

func TestGetSubscriptionEmptyPool(t *testing.T) {
	setupPanelDB(t)
	setStaticPool(t, "")
	createInbound(t, vlessFixture("vless-nopool"))

	subService := SubService{}
	sub, err := subService.GetSubscription(context.Background(), testSubID, "example.com")
	if err != nil {
		t.Fatalf("expected empty body, not an error, got %v", err)
	}
	if links := decodeBody(t, sub.Body); len(links) != 0 {
		t.Fatalf("expected zero links from an empty pool, got %d", len(links))
	}
}

func TestGetSubscriptionDeterministic(t *testing.T) {
	setupPanelDB(t)
	setStaticPool(t, "a.cdn.example,b.cdn.example")
	createInbound(t, vlessFixture("vless-det"))

	subService := SubService{}
	first, err := subService.GetSubscription(context.Background(), testSubID, "example.com")
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}
	second, err := subService.GetSubscription(context.Background(), testSubID, "example.com")
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}
	if first.Body != second.Body {
		t.Fatalf("bodies differ across identical requests:\n%s\n%s", first.Body, second.Body)
	}
}

func TestGetSubscriptionUserInfo(t *testing.T) {
	setupPanelDB(t)
	setStaticPool(t, "a.cdn.example")

	inbound := vlessFixture("vless-limits")
	inbound.Settings = `{"clients":[{"id":"11111111-1111-1111-1111-111111111111","email":"u@example.com","enable":true,"subId":"` + testSubID + `","totalGB":10737418240,"expiryTime":1767225600000}]}`
	createInbound(t, inbound)
	err := database.GetDB().Create(&xray.ClientTraffic{
		InboundId: 1,
		Email:     "u@example.com",
		Enable:    true,
		Up:        1000,
		Down:      5000,
	}).Error
	if err != nil {
		t.Fatalf("create traffic row failed: %v", err)
	}

	subService := SubService{}
	sub, err := subService.GetSubscription(context.Background(), testSubID, "example.com")
	if err != nil {
		t.Fatalf("GetSubscription failed: %v", err)
	}
	want := "upload=1000; download=5000; total=10737418240; expire=1767225600"
	if sub.UserInfo != want {
		t.Fatalf("expected header %q, got %q", want, sub.UserInfo)
	}
}

func TestSubURL(t *testing.T) {
	subService := SubService{}

	t.Setenv("VSUB_SUB_URI", "")
	t.Setenv("VSUB_BASE_PATH", "/sub/")
	got, err := subService.SubURL(testSubID, "https", "panel.example.com:2096")
	if err != nil {
		t.Fatalf("SubURL failed: %v", err)
	}
	if got != "https://panel.example.com:2096/sub/"+testSubID {
		t.Fatalf("unexpected derived url %q", got)
	}

	t.Setenv("VSUB_SUB_URI", "https://share.example.com/s/")
	got, err = subService.SubURL(testSubID, "http", "ignored")
	if err != nil {
		t.Fatalf("SubURL failed: %v", err)
	}
	if got != "https://share.example.com/s/"+testSubID {
		t.Fatalf("expected sub_uri to win, got %q", got)
	}
}
