// Package xray holds the Xray-shaped data types shared with the panel database.
package xray

// ClientTraffic mirrors the panel's client_traffics table, keyed by the
// client email the panel assigns. The subscription server reads it to report
// usage back to subscribing apps.
type ClientTraffic struct {
	Id         int    `json:"id" gorm:"primaryKey;autoIncrement"`
	InboundId  int    `json:"inboundId" gorm:"index"`
	Enable     bool   `json:"enable"`
	Email      string `json:"email" gorm:"index"`
	Up         int64  `json:"up"`
	Down       int64  `json:"down"`
	ExpiryTime int64  `json:"expiryTime"`
	Total      int64  `json:"total"`
	Reset      int    `json:"reset" gorm:"default:0"`
}
