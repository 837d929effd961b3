// Package committee is the HTTP contract client for the out-of-scope AI
// "committee" collaborator (spec.md §4.7, SPEC_FULL.md §4.7 ADDED): given
// a column header plus sample values, it returns a consensus column
// mapping. The client is a thin, retry-free HTTP call — internal/orderworkflow's
// RunCommittee activity wraps it with workflowengine.RunCommitteePolicy.
package committee

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smilemakc/mbflow/pkg/models"
)

// ConsensusKind is the closed set of agreement outcomes the committee may
// report for one mapping round.
type ConsensusKind string

const (
	ConsensusUnanimous   ConsensusKind = "unanimous"
	ConsensusMajority    ConsensusKind = "majority"
	ConsensusSplit       ConsensusKind = "split"
	ConsensusNoConsensus ConsensusKind = "no_consensus"
)

// ColumnSample is one source column's header and a handful of example
// cell values, the unit of evidence the committee reasons over.
type ColumnSample struct {
	Header       string   `json:"header"`
	SourceColumn string   `json:"sourceColumn"`
	Samples      []string `json:"samples"`
}

// MapRequest is the POST {COMMITTEE_URL}/map request body.
type MapRequest struct {
	CaseID  string         `json:"caseId"`
	Columns []ColumnSample `json:"columns"`
}

// MapResponse is the committee's consensus mapping plus its agreement
// kind and, when not unanimous, the columns it disagreed on.
type MapResponse struct {
	Mappings      []models.ColumnMapping `json:"mappings"`
	Consensus     ConsensusKind          `json:"consensus"`
	Disagreements []string               `json:"disagreements,omitempty"`
}

// HasConsensus reports whether the mapping may be accepted without a
// human in the loop. spec.md §9 resolves "split" and "no_consensus"
// identically: both require review.
func (r *MapResponse) HasConsensus() bool {
	return r.Consensus == ConsensusUnanimous || r.Consensus == ConsensusMajority
}

// Client is the committee service's HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client against baseURL (spec.md §6 COMMITTEE_URL).
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, httpClient: &http.Client{Timeout: 60 * time.Second}}
}

// Map requests a consensus column mapping for one case's extracted
// columns.
func (c *Client) Map(ctx context.Context, req MapRequest) (*MapResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal committee request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/map", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build committee request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("committee request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read committee response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("committee returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out MapResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode committee response: %w", err)
	}
	return &out, nil
}
