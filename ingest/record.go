package ingest

import (
	"bytes"
	"fmt"

	"github.com/hupe1980/ccvec/codec"
	"github.com/hupe1980/ccvec/embedding"
	"github.com/hupe1980/ccvec/model"
)

// PreviewChars is the length of the transcript preview kept in metadata.
const PreviewChars = 200

// Metrics is the metrics block of a source record.
type Metrics struct {
	CSAT           *float64 `json:"csat,omitempty"`
	FCR            *bool    `json:"fcr,omitempty"`
	AHT            int      `json:"aht,omitempty"`
	Sentiment      string   `json:"sentiment,omitempty"`
	ResolutionTime int      `json:"resolution_time,omitempty"`
}

// Analysis is the analysis block of a source record. Generated records carry
// free text; structured producers emit an object.
type Analysis struct {
	Text                string   `json:"-"`
	CSATScore           *float64 `json:"csat_score,omitempty"`
	Sentiment           string   `json:"sentiment,omitempty"`
	FirstCallResolution *bool    `json:"first_call_resolution,omitempty"`
}

type analysisObject Analysis

// UnmarshalJSON accepts either a JSON string or an object.
func (a *Analysis) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return codec.Default.Unmarshal(b, &a.Text)
	}
	var obj analysisObject
	if err := codec.Default.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	*a = Analysis(obj)
	return nil
}

// Record is a stored transcript document.
type Record struct {
	TranscriptID string    `json:"transcript_id"`
	BatchID      string    `json:"batch_id"`
	EntityName   string    `json:"entity_name"`
	Scenario     string    `json:"scenario"`
	Length       any       `json:"length,omitempty"`
	Transcript   string    `json:"transcript"`
	Analysis     Analysis  `json:"analysis"`
	Metrics      Metrics   `json:"metrics"`
	Embedding    []float32 `json:"embedding,omitempty"`
	Timestamp    string    `json:"timestamp"`
	CallDuration int       `json:"call_duration"`
	CustomerID   string    `json:"customer_id"`
	AgentID      string    `json:"agent_id"`
}

// ParseRecord decodes a source document.
func ParseRecord(data []byte) (Record, error) {
	var r Record
	if err := codec.Default.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("ingest: decode record: %w", err)
	}
	return r, nil
}

// Metadata extracts the filterable attributes of r. The metrics block wins
// over the analysis block.
func (r Record) Metadata(sourceKey string) model.Metadata {
	md := model.Metadata{
		ID:         r.TranscriptID,
		BatchID:    r.BatchID,
		EntityName: r.EntityName,
		Scenario:   r.Scenario,
		AHT:        r.Metrics.AHT,
		CustomerID: r.CustomerID,
		AgentID:    r.AgentID,
		Timestamp:  r.Timestamp,
		SourceKey:  sourceKey,
	}

	switch {
	case r.Metrics.CSAT != nil:
		md.CSAT = *r.Metrics.CSAT
	case r.Analysis.CSATScore != nil:
		md.CSAT = *r.Analysis.CSATScore
	}
	switch {
	case r.Metrics.FCR != nil:
		md.Resolved = *r.Metrics.FCR
	case r.Analysis.FirstCallResolution != nil:
		md.Resolved = *r.Analysis.FirstCallResolution
	}

	sentiment := model.Sentiment(r.Metrics.Sentiment)
	if !sentiment.Valid() {
		sentiment = model.Sentiment(r.Analysis.Sentiment)
	}
	if sentiment.Valid() {
		md.Sentiment = sentiment
	}

	fields := map[string]any{}
	if preview := embedding.Truncate(r.Transcript, PreviewChars); preview != "" {
		fields["preview"] = preview
	}
	if r.Length != nil {
		fields["length"] = r.Length
	}
	if r.CallDuration > 0 {
		fields["call_duration"] = r.CallDuration
	}
	if r.Metrics.ResolutionTime > 0 {
		fields["resolution_time"] = r.Metrics.ResolutionTime
	}
	if len(fields) > 0 {
		md.Fields = fields
	}
	return md
}
