package integration

import (
	"net/http"

	"leadhub.app/aggregator/core/config"
)

// Registry is the startup-built index of every configured adapter.
// Constructing it validates the whole catalog: an unknown crm_type fails
// here, at load time, never in the middle of a task.
type Registry struct {
	senders     map[string]LeadSender
	configs     map[string]config.CRMConfig
	byLanding   map[string]string
	byCampaign  map[string]string
	defaultCRM  *config.CRMConfig
	conversions ConversionSender
}

func NewRegistry(cfg config.Integrations, client *http.Client) (*Registry, error) {
	if client == nil {
		client = NewHTTPClient(0)
	}

	r := &Registry{
		senders:     make(map[string]LeadSender),
		configs:     make(map[string]config.CRMConfig),
		byLanding:   make(map[string]string, len(cfg.LandingMappings)),
		byCampaign:  make(map[string]string, len(cfg.CampaignMappings)),
		conversions: newYandexDirectSender(cfg.YandexDirect, client),
	}

	for _, crm := range cfg.CRMConfigs {
		if err := r.register(crm, client); err != nil {
			return nil, err
		}
	}

	if cfg.DefaultCRM != nil {
		r.defaultCRM = cfg.DefaultCRM
		// A default without a crm_id can only be the "no integration"
		// placeholder; it is not addressable and gets no sender.
		if cfg.DefaultCRM.CRMID != "" {
			if err := r.register(*cfg.DefaultCRM, client); err != nil {
				return nil, err
			}
		}
	}

	for _, m := range cfg.LandingMappings {
		r.byLanding[m.LandingID] = m.CRMID
	}
	for _, m := range cfg.CampaignMappings {
		r.byCampaign[m.CampaignID] = m.CRMID
	}

	return r, nil
}

func (r *Registry) register(crm config.CRMConfig, client *http.Client) error {
	sender, err := newLeadSender(crm, client)
	if err != nil {
		return err
	}
	r.configs[crm.CRMID] = crm
	if crm.APIEndpoint != "" {
		r.senders[crm.CRMID] = sender
	}
	return nil
}

// ResolveCRM picks the CRM for a new lead: landing mapping first, then
// campaign mapping, then the default. The returned config may still be
// non-queueable (no api_endpoint); callers check that before enqueueing.
func (r *Registry) ResolveCRM(landingID string, campaignID *string) (config.CRMConfig, bool) {
	if crmID, ok := r.byLanding[landingID]; ok {
		if crm, ok := r.configs[crmID]; ok {
			return crm, true
		}
	}

	if campaignID != nil {
		if crmID, ok := r.byCampaign[*campaignID]; ok {
			if crm, ok := r.configs[crmID]; ok {
				return crm, true
			}
		}
	}

	if r.defaultCRM != nil {
		return *r.defaultCRM, true
	}

	return config.CRMConfig{}, false
}

// SenderByID returns the delivery adapter for a crm_id, when that CRM is
// actually reachable (has an endpoint).
func (r *Registry) SenderByID(crmID string) (LeadSender, bool) {
	sender, ok := r.senders[crmID]
	return sender, ok
}

// CRMConfig returns the raw configuration for a crm_id, endpoint or not.
// Webhook handling needs this even for receive-only CRMs.
func (r *Registry) CRMConfig(crmID string) (config.CRMConfig, bool) {
	crm, ok := r.configs[crmID]
	return crm, ok
}

// Conversions returns the ad-platform sender. Never nil: with no campaigns
// configured every send reports ErrCampaignNotConfigured.
func (r *Registry) Conversions() ConversionSender {
	return r.conversions
}
