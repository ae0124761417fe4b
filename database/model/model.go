// Package model defines the panel database models the subscription server reads.
package model

import (
	"github.com/akellavk/V2RaySub/xray"
)

// Protocol represents the protocol type of a panel inbound.
type Protocol string

// Protocols the link builder understands. Inbounds carrying anything else
// are reported and skipped during synthesis.
const (
	VMESS       Protocol = "vmess"
	VLESS       Protocol = "vless"
	Trojan      Protocol = "trojan"
	Shadowsocks Protocol = "shadowsocks"
)

// Inbound mirrors one row of the panel's inbounds table.
// Settings, StreamSettings and Sniffing hold raw JSON exactly as the panel
// stores it; parsing happens downstream so a bad row never breaks a query.
type Inbound struct {
	Id          int                  `json:"id" gorm:"primaryKey;autoIncrement"`
	UserId      int                  `json:"-"`
	Up          int64                `json:"up"`
	Down        int64                `json:"down"`
	Total       int64                `json:"total"`
	Remark      string               `json:"remark"`
	Enable      bool                 `json:"enable"`
	ExpiryTime  int64                `json:"expiryTime"`
	ClientStats []xray.ClientTraffic `gorm:"foreignKey:InboundId;references:Id" json:"clientStats"`

	// Xray configuration fields
	Listen         string   `json:"listen"`
	Port           int      `json:"port"`
	Protocol       Protocol `json:"protocol"`
	Settings       string   `json:"settings"`
	StreamSettings string   `json:"streamSettings"`
	Tag            string   `json:"tag" gorm:"unique"`
	Sniffing       string   `json:"sniffing"`
}

// Client is the shape of one entry of settings.clients inside an inbound's
// Settings JSON. The panel embeds clients there rather than giving them a
// table of their own.
type Client struct {
	ID         string `json:"id"`       // UUID for vmess/vless
	Security   string `json:"security"` // vmess cipher, normally "auto"
	Password   string `json:"password"` // trojan/shadowsocks secret
	Flow       string `json:"flow"`     // XTLS flow control
	Email      string `json:"email"`
	LimitIP    int    `json:"limitIp"`
	TotalGB    int64  `json:"totalGB"`
	ExpiryTime int64  `json:"expiryTime"`
	Enable     bool   `json:"enable"`
	TgID       int64  `json:"tgId"`
	SubID      string `json:"subId"`
	Comment    string `json:"comment"`
	Reset      int    `json:"reset"`
}
