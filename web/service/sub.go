package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"go.uber.org/atomic"

	"github.com/akellavk/V2RaySub/logger"
	"github.com/akellavk/V2RaySub/sublink"
	"github.com/akellavk/V2RaySub/web/cache"
)

var (
	servedTotal  atomic.Int64
	skippedTotal atomic.Int64
)

// SubStats reports how many subscriptions were assembled and how many
// inbounds or variants were skipped since process start.
func SubStats() (served, skipped int64) {
	return servedTotal.Load(), skippedTotal.Load()
}

// Subscription is one assembled response: the base64 body and the optional
// traffic header value.
type Subscription struct {
	Body     string `json:"body"`
	UserInfo string `json:"userInfo,omitempty"`
}

// SubService assembles subscription bodies: one panel read, normalization of
// each inbound, expansion against the SNI pool, one link per variant, and a
// base64 of the newline-joined result.
type SubService struct {
	inboundService InboundService
	snipoolService SniPoolService
	settingService SettingService
}

// GetSubscription returns the assembled subscription for subId. host is the
// address links fall back to when an inbound binds a wildcard. Identical
// panel state and pool produce byte-identical bodies, so the result may be
// served from cache when a TTL is configured.
func (s *SubService) GetSubscription(ctx context.Context, subId string, host string) (*Subscription, error) {
	ttl, err := s.settingService.GetCacheTTL()
	if err != nil {
		return nil, err
	}
	sub := &Subscription{}
	err = cache.GetOrSet(cache.KeySubPrefix+subId+":"+host, sub, ttl, func() (any, error) {
		return s.buildSubscription(ctx, subId, host)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *SubService) buildSubscription(ctx context.Context, subId string, host string) (*Subscription, error) {
	record, err := s.inboundService.GetClientRecord(ctx, subId)
	if err != nil {
		return nil, err
	}

	mode, err := s.settingService.GetSniMode()
	if err != nil {
		return nil, err
	}
	var pool []string
	if mode == "panel" {
		pool = s.snipoolService.PoolForRecord(record)
	} else {
		pool = s.snipoolService.GetPool()
	}

	// A bad inbound only costs its own links; the rest of the record still
	// assembles.
	params := make([]*sublink.CanonicalParams, 0, len(record.Entries))
	for _, entry := range record.Entries {
		p, err := sublink.Normalize(entry.Inbound, &entry.Client, host)
		if err != nil {
			skippedTotal.Inc()
			logger.Warningf("inbound %d skipped: %v", entry.Inbound.Id, err)
			continue
		}
		params = append(params, p)
	}

	variants := sublink.Expand(params, pool)
	links := make([]string, 0, len(variants))
	for _, variant := range variants {
		link, err := sublink.Encode(variant)
		if err != nil {
			skippedTotal.Inc()
			logger.Warningf("variant %q skipped: %v", variant.Remark, err)
			continue
		}
		links = append(links, link)
	}

	sub := &Subscription{
		Body: base64.StdEncoding.EncodeToString([]byte(strings.Join(links, "\n"))),
	}
	if record.HasLimits() {
		// The panel stores expiry in milliseconds, the header carries seconds.
		sub.UserInfo = fmt.Sprintf("upload=%d; download=%d; total=%d; expire=%d",
			record.Upload, record.Download, record.Total, record.ExpiryTime/1000)
	}
	servedTotal.Inc()
	return sub, nil
}

// SubURL builds the external URL subscribing apps import, for the QR code.
// A configured sub_uri wins over the requesting host.
func (s *SubService) SubURL(subId string, scheme string, requestHost string) (string, error) {
	subURI, err := s.settingService.GetSubURI()
	if err != nil {
		return "", err
	}
	if subURI != "" {
		return strings.TrimSuffix(subURI, "/") + "/" + subId, nil
	}
	basePath, err := s.settingService.GetBasePath()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s://%s%s%s", scheme, requestHost, basePath, subId), nil
}
