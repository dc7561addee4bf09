package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterSet_Match(t *testing.T) {
	m := Metadata{ID: "a", CSAT: 4, Resolved: true, Sentiment: SentimentPositive}

	assert.True(t, FilterSet{}.Match(m))
	assert.True(t, FilterSet{}.Empty())

	assert.True(t, FilterSet{}.WithMinScore(4).Match(m))
	assert.False(t, FilterSet{}.WithMinScore(4.5).Match(m))

	assert.True(t, FilterSet{}.WithResolved(true).Match(m))
	assert.False(t, FilterSet{}.WithResolved(false).Match(m))

	assert.True(t, FilterSet{}.WithSentiment(SentimentPositive).Match(m))
	assert.False(t, FilterSet{}.WithSentiment(SentimentNegative).Match(m))

	// Conjunction: one failing predicate rejects the record.
	f := FilterSet{}.WithMinScore(3).WithResolved(true).WithSentiment(SentimentNeutral)
	assert.False(t, f.Match(m))
	assert.False(t, f.Empty())
}

func TestFilterSet_WithDoesNotAlias(t *testing.T) {
	base := FilterSet{}.WithMinScore(2)
	stricter := base.WithResolved(true)

	assert.Nil(t, base.Resolved)
	require.NotNil(t, stricter.MinScore)
	assert.Equal(t, 2.0, *stricter.MinScore)
}

func TestScale_Similarity(t *testing.T) {
	assert.Equal(t, 1.0, ScaleL2.Similarity(0))
	assert.Equal(t, 0.5, ScaleL2.Similarity(1))
	assert.Greater(t, ScaleL2.Similarity(0.5), ScaleL2.Similarity(2))

	assert.InDelta(t, 0.8, ScaleCosine.Similarity(0.8), 1e-6)
	assert.Equal(t, 0.0, ScaleCosine.Similarity(-0.3))
	assert.Equal(t, 1.0, ScaleCosine.Similarity(1.00001))

	assert.False(t, ScaleL2.HigherIsBetter())
	assert.True(t, ScaleCosine.HigherIsBetter())
}

func TestScale_Text(t *testing.T) {
	for _, s := range []Scale{ScaleL2, ScaleCosine} {
		b, err := s.MarshalText()
		require.NoError(t, err)

		var got Scale
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, s, got)
	}

	_, err := ParseScale("manhattan")
	assert.Error(t, err)
}

func TestParseSentiment(t *testing.T) {
	s, err := ParseSentiment("negative")
	require.NoError(t, err)
	assert.Equal(t, SentimentNegative, s)

	_, err = ParseSentiment("angry")
	assert.Error(t, err)
}
