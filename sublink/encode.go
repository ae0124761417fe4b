package sublink

import (
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/akellavk/V2RaySub/database/model"
)

// vmessObject is the flat JSON carried inside a vmess:// link, in the field
// order v2rayN established. Marshalling a struct keeps that order stable,
// which keeps whole bodies byte-identical across runs.
type vmessObject struct {
	V    string `json:"v"`
	Ps   string `json:"ps"`
	Add  string `json:"add"`
	Port int    `json:"port"`
	ID   string `json:"id"`
	Aid  int    `json:"aid"`
	Scy  string `json:"scy"`
	Net  string `json:"net"`
	Type string `json:"type"`
	Host string `json:"host"`
	Path string `json:"path"`
	TLS  string `json:"tls"`
	SNI  string `json:"sni"`
	ALPN string `json:"alpn"`
	Fp   string `json:"fp"`
}

// Encode renders one variant into its protocol's URI grammar. A protocol
// without a grammar reports ErrUnsupported so the caller can skip the
// variant instead of aborting the subscription.
func Encode(v Variant) (string, error) {
	switch v.Protocol {
	case model.VMESS:
		return encodeVmess(v)
	case model.VLESS:
		return encodeVless(v), nil
	case model.Trojan:
		return encodeTrojan(v), nil
	case model.Shadowsocks:
		return encodeShadowsocks(v), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, v.Protocol)
	}
}

func encodeVmess(v Variant) (string, error) {
	headerType := v.HeaderType
	if headerType == "" {
		headerType = "none"
	}
	obj := vmessObject{
		V:    "2",
		Ps:   v.Remark,
		Add:  v.Address,
		Port: v.Port,
		ID:   v.UUID,
		Scy:  v.Cipher,
		Net:  v.Network,
		Type: headerType,
		Host: v.Host,
		Path: v.Path,
		TLS:  v.Security,
		SNI:  v.SNI,
		ALPN: v.ALPN,
		Fp:   v.Fingerprint,
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return "vmess://" + base64.StdEncoding.EncodeToString(data), nil
}

func encodeVless(v Variant) string {
	q := transportQuery(v)
	if v.Flow != "" {
		q.Set("flow", v.Flow)
	}
	u := url.URL{
		Scheme:   "vless",
		User:     url.User(v.UUID),
		Host:     net.JoinHostPort(v.Address, strconv.Itoa(v.Port)),
		RawQuery: q.Encode(),
		Fragment: v.Remark,
	}
	return u.String()
}

func encodeTrojan(v Variant) string {
	u := url.URL{
		Scheme:   "trojan",
		User:     url.User(v.Password),
		Host:     net.JoinHostPort(v.Address, strconv.Itoa(v.Port)),
		RawQuery: transportQuery(v).Encode(),
		Fragment: v.Remark,
	}
	return u.String()
}

func encodeShadowsocks(v Variant) string {
	// 2022 ciphers authenticate with the inbound key and the client key
	// stacked; classic ciphers carry just the client password.
	userInfo := v.Method + ":" + v.Password
	if strings.HasPrefix(v.Method, "2022-blake3-") {
		userInfo = v.Method + ":" + v.InboundPassword + ":" + v.Password
	}
	fragment := url.URL{Fragment: v.Remark}
	return fmt.Sprintf("ss://%s@%s#%s",
		base64.StdEncoding.EncodeToString([]byte(userInfo)),
		net.JoinHostPort(v.Address, strconv.Itoa(v.Port)),
		fragment.EscapedFragment())
}

// transportQuery builds the query parameters vless and trojan links share.
// url.Values.Encode sorts by key, so the rendering is deterministic.
func transportQuery(v Variant) url.Values {
	q := url.Values{}
	q.Set("type", v.Network)
	q.Set("security", v.Security)
	if v.Path != "" {
		q.Set("path", v.Path)
	}
	if v.Host != "" {
		q.Set("host", v.Host)
	}
	if v.ServiceName != "" {
		q.Set("serviceName", v.ServiceName)
	}
	if v.HeaderType != "" {
		q.Set("headerType", v.HeaderType)
	}
	if v.SNI != "" {
		q.Set("sni", v.SNI)
	}
	if v.Fingerprint != "" {
		q.Set("fp", v.Fingerprint)
	}
	if v.ALPN != "" {
		q.Set("alpn", v.ALPN)
	}
	if v.Security == "reality" {
		if v.PublicKey != "" {
			q.Set("pbk", v.PublicKey)
		}
		if v.ShortID != "" {
			q.Set("sid", v.ShortID)
		}
		if v.SpiderX != "" {
			q.Set("spx", v.SpiderX)
		}
	}
	return q
}
