package integration

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"leadhub.app/aggregator/core/config"
)

// CRM vendor identifiers accepted in crm_type. An empty crm_type means
// generic.
const (
	CRMTypeAmoCRM   = "amocrm"
	CRMTypeBitrix24 = "bitrix24"
	CRMTypeGeneric  = "generic"
)

func newLeadSender(cfg config.CRMConfig, client *http.Client) (LeadSender, error) {
	switch cfg.CRMType {
	case CRMTypeAmoCRM:
		return &amoCRMSender{cfg: cfg, client: client}, nil
	case CRMTypeBitrix24:
		return &bitrix24Sender{cfg: cfg, client: client}, nil
	case CRMTypeGeneric, "":
		return &genericSender{cfg: cfg, client: client}, nil
	default:
		return nil, fmt.Errorf("unknown crm_type %q for crm %q", cfg.CRMType, cfg.CRMID)
	}
}

type amoCRMSender struct {
	cfg    config.CRMConfig
	client *http.Client
}

func (s *amoCRMSender) CRMID() string {
	return s.cfg.CRMID
}

func (s *amoCRMSender) SendLead(ctx context.Context, formData map[string]any) (Outcome, error) {
	payload := map[string]any{
		"name":  valueOr(formData, "name", "Новый лид"),
		"price": valueOr(formData, "price", 0),
	}

	custom := make([]map[string]any, 0, len(s.cfg.FieldMapping))
	for _, source := range sortedKeys(s.cfg.FieldMapping) {
		value, ok := formData[source]
		if !ok {
			continue
		}
		custom = append(custom, map[string]any{
			"field_id": s.cfg.FieldMapping[source],
			"values":   []map[string]any{{"value": value}},
		})
	}
	payload["custom_fields_values"] = custom

	headers := map[string]string{
		"Authorization": "Bearer " + s.cfg.AccessToken,
	}
	return postJSON(ctx, s.client, s.cfg.APIEndpoint+"/api/v4/leads", headers, payload)
}

type bitrix24Sender struct {
	cfg    config.CRMConfig
	client *http.Client
}

func (s *bitrix24Sender) CRMID() string {
	return s.cfg.CRMID
}

// SendLead posts to the inbound webhook URL, so no auth header: the secret
// is part of the configured endpoint itself.
func (s *bitrix24Sender) SendLead(ctx context.Context, formData map[string]any) (Outcome, error) {
	payload := map[string]any{
		"fields": map[string]any{
			"TITLE":       valueOr(formData, "name", "Новый лид"),
			"NAME":        valueOr(formData, "first_name", ""),
			"LAST_NAME":   valueOr(formData, "last_name", ""),
			"OPPORTUNITY": valueOr(formData, "price", 0),
			"SOURCE_ID":   "WEB",
		},
	}
	return postJSON(ctx, s.client, s.cfg.APIEndpoint+"/crm.lead.add.json", nil, payload)
}

type genericSender struct {
	cfg    config.CRMConfig
	client *http.Client
}

func (s *genericSender) CRMID() string {
	return s.cfg.CRMID
}

func (s *genericSender) SendLead(ctx context.Context, formData map[string]any) (Outcome, error) {
	payload := make(map[string]any, len(s.cfg.FieldMapping)+1)
	for source, target := range s.cfg.FieldMapping {
		if value, ok := formData[source]; ok {
			payload[target] = value
		}
	}
	if s.cfg.APIKey != "" {
		payload["api_key"] = s.cfg.APIKey
	}
	return postJSON(ctx, s.client, s.cfg.APIEndpoint, nil, payload)
}

func valueOr(formData map[string]any, key string, fallback any) any {
	if v, ok := formData[key]; ok {
		return v
	}
	return fallback
}

// sortedKeys keeps the custom field order stable across sends.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
