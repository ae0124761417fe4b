// Package sublink turns panel inbound rows into the share links subscribing
// clients import. An inbound is first normalized into protocol-neutral
// parameters, then expanded against the SNI pool, and each resulting variant
// is encoded into its protocol's URI grammar.
package sublink

import (
	"github.com/akellavk/V2RaySub/database/model"
)

// CanonicalParams is everything one link needs, extracted from an inbound
// row and the subscription's client inside it. Remark holds the unlabeled
// base; SNI holds the server name the inbound itself carries, before any
// pool entry is applied.
type CanonicalParams struct {
	Protocol model.Protocol
	Remark   string
	Address  string
	Port     int

	// Client identity
	UUID     string
	Password string
	Flow     string
	Cipher   string // vmess encryption, "auto" unless the client pins one

	// Shadowsocks
	Method          string
	InboundPassword string

	// Transport
	Network     string
	Security    string
	SNI         string
	Host        string
	Path        string
	ServiceName string
	HeaderType  string
	ALPN        string
	Fingerprint string

	// Reality
	PublicKey string
	ShortID   string
	SpiderX   string
}

// Variant is one concrete link: a copy of its source params with a pool
// host written into SNI and the remark labeled for it. Nothing else may
// differ between variants of the same source.
type Variant CanonicalParams
