package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Integrations is the startup-time integration catalog, loaded from a JSON
// file (INTEGRATIONS_CONFIG). It drives the adapter registry: which CRMs
// exist, how landings and campaigns map onto them, and which ad campaigns
// can receive offline conversions.
type Integrations struct {
	CRMConfigs       []CRMConfig        `json:"crm_configs"`
	LandingMappings  []LandingMapping   `json:"landing_crm_mappings"`
	CampaignMappings []CampaignMapping  `json:"campaign_crm_mappings"`
	DefaultCRM       *CRMConfig         `json:"default_crm,omitempty"`
	YandexDirect     YandexDirectConfig `json:"yandex_direct"`
}

type CRMConfig struct {
	CRMID         string            `json:"crm_id"`
	CRMType       string            `json:"crm_type"`
	APIEndpoint   string            `json:"api_endpoint"`
	AccessToken   string            `json:"access_token,omitempty"`
	APIKey        string            `json:"api_key,omitempty"`
	WebhookSecret string            `json:"webhook_secret,omitempty"`
	FieldMapping  map[string]string `json:"field_mapping,omitempty"`
}

type LandingMapping struct {
	LandingID string `json:"landing_id"`
	CRMID     string `json:"crm_id"`
}

type CampaignMapping struct {
	CampaignID string `json:"campaign_id"`
	CRMID      string `json:"crm_id"`
}

type YandexDirectConfig struct {
	APIURL    string                    `json:"api_url,omitempty"`
	Campaigns map[string]YandexCampaign `json:"campaigns,omitempty"`
}

type YandexCampaign struct {
	OAuthToken string `json:"oauth_token"`
}

// LoadIntegrations reads and validates the integration catalog.
// A missing file is not an error: the service runs with no integrations
// configured and lead ingestion simply never enqueues CRM deliveries.
func LoadIntegrations(path string) (Integrations, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Integrations{}, nil
	}
	if err != nil {
		return Integrations{}, fmt.Errorf("reading integrations config %s: %w", path, err)
	}

	var integrations Integrations
	if err := json.Unmarshal(data, &integrations); err != nil {
		return Integrations{}, fmt.Errorf("parsing integrations config %s: %w", path, err)
	}

	if err := integrations.validate(); err != nil {
		return Integrations{}, fmt.Errorf("invalid integrations config %s: %w", path, err)
	}

	return integrations, nil
}

func (i Integrations) validate() error {
	seen := make(map[string]bool, len(i.CRMConfigs))
	for idx, crm := range i.CRMConfigs {
		if crm.CRMID == "" {
			return fmt.Errorf("crm_configs[%d]: crm_id is required", idx)
		}
		if seen[crm.CRMID] {
			return fmt.Errorf("crm_configs[%d]: duplicate crm_id %q", idx, crm.CRMID)
		}
		seen[crm.CRMID] = true
	}

	// The default CRM is addressed by crm_id in task payloads, so it cannot
	// be anonymous once it is actually reachable.
	if i.DefaultCRM != nil && i.DefaultCRM.APIEndpoint != "" && i.DefaultCRM.CRMID == "" {
		return fmt.Errorf("default_crm: crm_id is required when api_endpoint is set")
	}

	for idx, m := range i.LandingMappings {
		if m.LandingID == "" || m.CRMID == "" {
			return fmt.Errorf("landing_crm_mappings[%d]: landing_id and crm_id are required", idx)
		}
	}
	for idx, m := range i.CampaignMappings {
		if m.CampaignID == "" || m.CRMID == "" {
			return fmt.Errorf("campaign_crm_mappings[%d]: campaign_id and crm_id are required", idx)
		}
	}

	return nil
}
