package model

import (
	"fmt"
	"slices"
)

// RecordID is the user-facing stable identifier of a transcript record.
type RecordID = string

// Position is the dense insertion position of a vector inside an index.
// Position i corresponds to entry i of the id-ordering table.
type Position = uint32

// Vector is a fixed-dimension embedding.
type Vector []float32

// Clone returns a copy of v.
func (v Vector) Clone() Vector {
	return slices.Clone(v)
}

// Scale identifies the similarity scale a backend reports.
//
// Scores from different scales must not be compared with each other.
type Scale uint8

const (
	// ScaleL2 is used by Euclidean backends. Raw scores are squared L2
	// distances (lower is better) and similarity is 1/(1+distance).
	ScaleL2 Scale = iota + 1
	// ScaleCosine is used by cosine backends. Raw scores are cosine
	// similarities (higher is better) reported without transformation.
	ScaleCosine
)

func (s Scale) String() string {
	switch s {
	case ScaleL2:
		return "l2"
	case ScaleCosine:
		return "cosine"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ParseScale parses the string form of a Scale.
func ParseScale(s string) (Scale, error) {
	switch s {
	case "l2":
		return ScaleL2, nil
	case "cosine":
		return ScaleCosine, nil
	default:
		return 0, fmt.Errorf("unknown scale %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Scale) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Scale) UnmarshalText(b []byte) error {
	v, err := ParseScale(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// HigherIsBetter reports whether larger raw scores rank first.
func (s Scale) HigherIsBetter() bool {
	return s == ScaleCosine
}

// Similarity converts a raw backend score into a bounded similarity in [0,1].
func (s Scale) Similarity(score float32) float64 {
	switch s {
	case ScaleL2:
		d := float64(score)
		if d < 0 {
			d = 0
		}
		return 1 / (1 + d)
	case ScaleCosine:
		return min(max(float64(score), 0), 1)
	default:
		return 0
	}
}

// Sentiment is the categorical sentiment label of a transcript.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether s is one of the known sentiment labels.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// ParseSentiment parses a sentiment label.
func ParseSentiment(s string) (Sentiment, error) {
	v := Sentiment(s)
	if !v.Valid() {
		return "", fmt.Errorf("unknown sentiment %q", s)
	}
	return v, nil
}

// Metadata holds the record attributes kept in the metadata store.
type Metadata struct {
	ID         RecordID       `json:"transcript_id"`
	BatchID    string         `json:"batch_id,omitempty"`
	EntityName string         `json:"entity_name,omitempty"`
	Scenario   string         `json:"scenario,omitempty"`
	CSAT       float64        `json:"csat"`
	Resolved   bool           `json:"fcr"`
	AHT        int            `json:"aht,omitempty"`
	Sentiment  Sentiment      `json:"sentiment,omitempty"`
	CustomerID string         `json:"customer_id,omitempty"`
	AgentID    string         `json:"agent_id,omitempty"`
	Timestamp  string         `json:"timestamp,omitempty"`
	SourceKey  string         `json:"s3_key,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// SearchResult is a single ranked hit.
type SearchResult struct {
	ID RecordID `json:"id"`
	// Score is the raw backend score (distance for ScaleL2, cosine for ScaleCosine).
	Score float32 `json:"score"`
	// Similarity is the bounded similarity in [0,1].
	Similarity float64  `json:"similarity"`
	Scale      Scale    `json:"scale"`
	Metadata   Metadata `json:"metadata"`
}
