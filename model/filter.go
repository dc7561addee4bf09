package model

// FilterSet is the closed set of supported post-filter predicates.
//
// A nil field imposes no constraint. Set fields are combined with AND.
type FilterSet struct {
	// MinScore keeps records whose CSAT score is at least the given value.
	MinScore *float64 `json:"minScore,omitempty"`
	// Resolved keeps records whose first-call-resolution flag equals the value.
	Resolved *bool `json:"resolved,omitempty"`
	// Sentiment keeps records with the given sentiment label.
	Sentiment *Sentiment `json:"sentiment,omitempty"`
}

// Empty reports whether the filter set imposes no constraint.
func (f FilterSet) Empty() bool {
	return f.MinScore == nil && f.Resolved == nil && f.Sentiment == nil
}

// Match reports whether m satisfies every set predicate.
func (f FilterSet) Match(m Metadata) bool {
	if f.MinScore != nil && m.CSAT < *f.MinScore {
		return false
	}
	if f.Resolved != nil && m.Resolved != *f.Resolved {
		return false
	}
	if f.Sentiment != nil && m.Sentiment != *f.Sentiment {
		return false
	}
	return true
}

// WithMinScore returns a copy of f requiring CSAT >= v.
func (f FilterSet) WithMinScore(v float64) FilterSet {
	f.MinScore = &v
	return f
}

// WithResolved returns a copy of f requiring the resolution flag to equal v.
func (f FilterSet) WithResolved(v bool) FilterSet {
	f.Resolved = &v
	return f
}

// WithSentiment returns a copy of f requiring sentiment v.
func (f FilterSet) WithSentiment(v Sentiment) FilterSet {
	f.Sentiment = &v
	return f
}
