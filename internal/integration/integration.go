// Package integration holds the outbound adapters for CRM systems and ad
// platforms. Adapters are plain HTTP POSTs behind small interfaces: one
// shared client, a fixed timeout, and no retries here. Retry policy belongs
// to the task queue, which sees every failure uniformly.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Outcome is the uniform result of a single delivery attempt. Transport
// failures are returned as errors; everything that produced an HTTP
// response lands here, success or not.
type Outcome struct {
	StatusCode int    `json:"status_code"`
	Body       string `json:"body"`
}

func (o Outcome) Success() bool {
	return o.StatusCode >= 200 && o.StatusCode < 300
}

// LeadSender delivers a captured lead to one configured CRM.
type LeadSender interface {
	CRMID() string
	SendLead(ctx context.Context, formData map[string]any) (Outcome, error)
}

// ConversionSender reports offline conversions to an ad platform.
type ConversionSender interface {
	SendConversion(ctx context.Context, campaignID, leadID, conversionType string, value float64) (Outcome, error)
}

// NewHTTPClient is the shared outbound client. The timeout bounds the whole
// exchange including body read.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body any) (Outcome, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return Outcome{}, fmt.Errorf("encoding request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return Outcome{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Outcome{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("reading response body: %w", err)
	}

	return Outcome{StatusCode: resp.StatusCode, Body: string(respBody)}, nil
}
