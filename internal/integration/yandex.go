package integration

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"leadhub.app/aggregator/core/config"
)

const defaultYandexAPIURL = "https://api.direct.yandex.ru/live/v4/json/"

// ErrCampaignNotConfigured means the campaign has no Yandex Direct entry.
// Callers treat this as a deliberate no-op, not a delivery failure.
var ErrCampaignNotConfigured = errors.New("campaign not configured for yandex direct")

type yandexDirectSender struct {
	apiURL    string
	campaigns map[string]config.YandexCampaign
	client    *http.Client
}

func newYandexDirectSender(cfg config.YandexDirectConfig, client *http.Client) ConversionSender {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultYandexAPIURL
	}
	return &yandexDirectSender{
		apiURL:    apiURL,
		campaigns: cfg.Campaigns,
		client:    client,
	}
}

func (s *yandexDirectSender) SendConversion(ctx context.Context, campaignID, leadID, conversionType string, value float64) (Outcome, error) {
	campaign, ok := s.campaigns[campaignID]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrCampaignNotConfigured, campaignID)
	}

	payload := map[string]any{
		"method": "AddOfflineConversions",
		"param": map[string]any{
			"Conversions": []map[string]any{{
				"CampaignID":     campaignID,
				"Yclid":          leadID,
				"ConversionType": conversionType,
				"Value":          value,
				"DateTime":       time.Now().UTC().Format(time.RFC3339),
			}},
		},
		"token": campaign.OAuthToken,
	}
	return postJSON(ctx, s.client, s.apiURL, nil, payload)
}
