package service

import (
	"context"

	"github.com/goccy/go-json"
	"gorm.io/gorm"

	"github.com/akellavk/V2RaySub/database"
	"github.com/akellavk/V2RaySub/database/model"
	"github.com/akellavk/V2RaySub/logger"
	"github.com/akellavk/V2RaySub/xray"
)

// RecordEntry pairs one enabled inbound with the subscription's client
// embedded in its settings.
type RecordEntry struct {
	Inbound *model.Inbound
	Client  model.Client
}

// ClientRecord is the request-scoped snapshot of everything the panel knows
// about one subscription: the inbounds its client may connect through, in
// inbound id order, and the accumulated usage and limits for the traffic
// header. The panel stays authoritative, the record is never cached across
// requests.
type ClientRecord struct {
	SubID   string
	Entries []RecordEntry

	Upload     int64
	Download   int64
	Total      int64 // quota in bytes, 0 = unlimited
	ExpiryTime int64 // panel milliseconds, 0 = never
}

// HasLimits reports whether the panel put a quota or an expiry on this
// subscription. Without either the traffic header is omitted entirely.
func (r *ClientRecord) HasLimits() bool {
	return r.Total > 0 || r.ExpiryTime > 0
}

// InboundService reads inbound rows from the panel database. It never
// writes: the panel owns every row this service touches.
type InboundService struct{}

type inboundSettings struct {
	Clients []model.Client `json:"clients"`
}

// GetClientRecord performs the one bounded read a request is allowed: it
// loads the enabled inbounds whose settings mention subId, confirms the
// match by parsing the embedded client list, and sums the matched clients'
// traffic rows. A subscription no enabled client carries yields
// gorm.ErrRecordNotFound; any other failure means the panel store is
// unavailable and is returned as-is.
func (s *InboundService) GetClientRecord(ctx context.Context, subId string) (*ClientRecord, error) {
	db := database.GetDB()

	// LIKE is only a prefilter; the real match is the exact, case-sensitive
	// subId comparison against the parsed clients below.
	var inbounds []*model.Inbound
	err := db.WithContext(ctx).
		Model(model.Inbound{}).
		Where("enable = ? and settings like ?", true, "%"+subId+"%").
		Order("id asc").
		Find(&inbounds).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}

	record := &ClientRecord{SubID: subId}
	emails := make([]string, 0, len(inbounds))
	for _, inbound := range inbounds {
		var settings inboundSettings
		if err := json.Unmarshal([]byte(inbound.Settings), &settings); err != nil {
			logger.Debugf("inbound %d: settings not parseable: %v", inbound.Id, err)
			continue
		}
		for _, client := range settings.Clients {
			if client.SubID != subId || !client.Enable {
				continue
			}
			record.Entries = append(record.Entries, RecordEntry{Inbound: inbound, Client: client})
			record.Total += client.TotalGB
			if client.ExpiryTime > record.ExpiryTime {
				record.ExpiryTime = client.ExpiryTime
			}
			if client.Email != "" {
				emails = append(emails, client.Email)
			}
			break
		}
	}
	if len(record.Entries) == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	if len(emails) > 0 {
		var traffics []*xray.ClientTraffic
		err = db.WithContext(ctx).
			Model(xray.ClientTraffic{}).
			Where("email in ?", emails).
			Find(&traffics).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return nil, err
		}
		for _, traffic := range traffics {
			record.Upload += traffic.Up
			record.Download += traffic.Down
		}
	}

	return record, nil
}
