package sublink

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/akellavk/V2RaySub/database/model"
)

// Errors a normalized inbound can be rejected with. Both mean "skip this
// inbound and keep going": the subscription is assembled from whatever
// remains.
var (
	ErrMalformed   = errors.New("malformed inbound")
	ErrUnsupported = errors.New("unsupported protocol")
)

// ssSettings is the inbound-level part of a shadowsocks settings JSON.
type ssSettings struct {
	Method   string `json:"method"`
	Password string `json:"password"`
}

type streamSettings struct {
	Network             string              `json:"network"`
	Security            string              `json:"security"`
	TLSSettings         *tlsSettings        `json:"tlsSettings"`
	RealitySettings     *realitySettings    `json:"realitySettings"`
	TCPSettings         *tcpSettings        `json:"tcpSettings"`
	WSSettings          *wsSettings         `json:"wsSettings"`
	GRPCSettings        *grpcSettings       `json:"grpcSettings"`
	KCPSettings         *kcpSettings        `json:"kcpSettings"`
	HTTPSettings        *httpSettings       `json:"httpSettings"`
	HTTPUpgradeSettings *httpUpgradeSettings `json:"httpupgradeSettings"`
}

type tlsSettings struct {
	ServerName string   `json:"serverName"`
	ALPN       []string `json:"alpn"`
	Settings   struct {
		Fingerprint string `json:"fingerprint"`
	} `json:"settings"`
}

type realitySettings struct {
	ServerNames []string `json:"serverNames"`
	ShortIds    []string `json:"shortIds"`
	Settings    struct {
		PublicKey   string `json:"publicKey"`
		Fingerprint string `json:"fingerprint"`
		SpiderX     string `json:"spiderX"`
	} `json:"settings"`
}

type tcpSettings struct {
	Header struct {
		Type    string `json:"type"`
		Request struct {
			Path    []string            `json:"path"`
			Headers map[string][]string `json:"headers"`
		} `json:"request"`
	} `json:"header"`
}

type wsSettings struct {
	Path    string            `json:"path"`
	Host    string            `json:"host"`
	Headers map[string]string `json:"headers"`
}

type grpcSettings struct {
	ServiceName string `json:"serviceName"`
}

type kcpSettings struct {
	Seed   string `json:"seed"`
	Header struct {
		Type string `json:"type"`
	} `json:"header"`
}

type httpSettings struct {
	Path string   `json:"path"`
	Host []string `json:"host"`
}

type httpUpgradeSettings struct {
	Path string `json:"path"`
	Host string `json:"host"`
}

// Normalize extracts the canonical link parameters from one inbound and the
// subscription's client in it. address is the externally reachable host the
// link falls back to when the inbound binds a wildcard. A malformed row or a
// protocol without an encoder yields an error wrapping ErrMalformed or
// ErrUnsupported; the caller logs it and moves on.
func Normalize(inbound *model.Inbound, client *model.Client, address string) (*CanonicalParams, error) {
	switch inbound.Protocol {
	case model.VMESS, model.VLESS, model.Trojan, model.Shadowsocks:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, inbound.Protocol)
	}

	if inbound.Port <= 0 || inbound.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", ErrMalformed, inbound.Port)
	}

	params := &CanonicalParams{
		Protocol: inbound.Protocol,
		Remark:   baseRemark(inbound, client),
		Address:  resolveAddress(inbound.Listen, address),
		Port:     inbound.Port,
		Network:  "tcp",
		Security: "none",
	}
	if params.Address == "" {
		return nil, fmt.Errorf("%w: no connectable address", ErrMalformed)
	}

	switch inbound.Protocol {
	case model.VMESS, model.VLESS:
		id, err := uuid.Parse(client.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: client id %q: %v", ErrMalformed, client.ID, err)
		}
		params.UUID = id.String()
		params.Flow = client.Flow
		if inbound.Protocol == model.VMESS {
			params.Cipher = client.Security
			if params.Cipher == "" {
				params.Cipher = "auto"
			}
			params.Flow = ""
		}
	case model.Trojan:
		if client.Password == "" {
			return nil, fmt.Errorf("%w: trojan client has no password", ErrMalformed)
		}
		params.Password = client.Password
	case model.Shadowsocks:
		var s ssSettings
		if err := json.Unmarshal([]byte(inbound.Settings), &s); err != nil {
			return nil, fmt.Errorf("%w: settings: %v", ErrMalformed, err)
		}
		if s.Method == "" {
			return nil, fmt.Errorf("%w: shadowsocks method missing", ErrMalformed)
		}
		if client.Password == "" {
			return nil, fmt.Errorf("%w: shadowsocks client has no password", ErrMalformed)
		}
		params.Method = s.Method
		params.InboundPassword = s.Password
		params.Password = client.Password
	}

	if err := applyStreamSettings(params, inbound.StreamSettings); err != nil {
		return nil, err
	}
	return params, nil
}

func applyStreamSettings(params *CanonicalParams, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var stream streamSettings
	if err := json.Unmarshal([]byte(raw), &stream); err != nil {
		return fmt.Errorf("%w: stream settings: %v", ErrMalformed, err)
	}
	if stream.Network != "" {
		params.Network = stream.Network
	}
	if stream.Security != "" {
		params.Security = stream.Security
	}

	switch params.Network {
	case "ws":
		if stream.WSSettings != nil {
			params.Path = stream.WSSettings.Path
			params.Host = stream.WSSettings.Host
			if params.Host == "" {
				params.Host = stream.WSSettings.Headers["Host"]
			}
		}
	case "grpc":
		if stream.GRPCSettings != nil {
			params.ServiceName = stream.GRPCSettings.ServiceName
		}
	case "http":
		if stream.HTTPSettings != nil {
			params.Path = stream.HTTPSettings.Path
			if len(stream.HTTPSettings.Host) > 0 {
				params.Host = stream.HTTPSettings.Host[0]
			}
		}
	case "httpupgrade":
		if stream.HTTPUpgradeSettings != nil {
			params.Path = stream.HTTPUpgradeSettings.Path
			params.Host = stream.HTTPUpgradeSettings.Host
		}
	case "kcp":
		if stream.KCPSettings != nil {
			params.HeaderType = stream.KCPSettings.Header.Type
			params.Path = stream.KCPSettings.Seed
		}
	case "tcp":
		if stream.TCPSettings != nil && stream.TCPSettings.Header.Type == "http" {
			params.HeaderType = "http"
			request := stream.TCPSettings.Header.Request
			if len(request.Path) > 0 {
				params.Path = request.Path[0]
			}
			if hosts := request.Headers["Host"]; len(hosts) > 0 {
				params.Host = hosts[0]
			}
		}
	}

	switch params.Security {
	case "tls":
		if stream.TLSSettings != nil {
			params.SNI = stream.TLSSettings.ServerName
			params.ALPN = strings.Join(stream.TLSSettings.ALPN, ",")
			params.Fingerprint = stream.TLSSettings.Settings.Fingerprint
		}
	case "reality":
		if stream.RealitySettings != nil {
			if len(stream.RealitySettings.ServerNames) > 0 {
				params.SNI = stream.RealitySettings.ServerNames[0]
			}
			if len(stream.RealitySettings.ShortIds) > 0 {
				params.ShortID = stream.RealitySettings.ShortIds[0]
			}
			params.PublicKey = stream.RealitySettings.Settings.PublicKey
			params.Fingerprint = stream.RealitySettings.Settings.Fingerprint
			params.SpiderX = stream.RealitySettings.Settings.SpiderX
		}
	}
	return nil
}

// baseRemark picks the human label a link starts from: the inbound remark,
// else the client email, else protocol-port.
func baseRemark(inbound *model.Inbound, client *model.Client) string {
	if remark := strings.TrimSpace(inbound.Remark); remark != "" {
		return remark
	}
	if client.Email != "" {
		return client.Email
	}
	return fmt.Sprintf("%s-%d", inbound.Protocol, inbound.Port)
}

// resolveAddress keeps a concrete bind address and replaces wildcard binds
// with the externally reachable fallback.
func resolveAddress(listen, fallback string) string {
	switch listen {
	case "", "0.0.0.0", "::", "::0":
		return fallback
	}
	return listen
}
