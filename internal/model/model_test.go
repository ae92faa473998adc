package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalIDDeterministic(t *testing.T) {
	a := CompanyID("apollo", "Gerhard Schubert GmbH")
	b := CompanyID("apollo", "  gerhard schubert gmbh ")
	assert.Equal(t, a, b, "ID must be a pure function of the normalized source key")

	c := CompanyID("kvk", "Gerhard Schubert GmbH")
	assert.NotEqual(t, a, c, "different provenance yields a different ID")

	assert.Contains(t, a, "co-apollo:")
}

func TestSignalTypeRegistry(t *testing.T) {
	all := AllSignalTypes()
	require.Len(t, all, 24)

	seen := map[SignalType]bool{}
	for _, st := range all {
		assert.True(t, st.Valid(), "type %s must be valid", st)
		assert.False(t, seen[st], "type %s duplicated", st)
		seen[st] = true
		assert.Positive(t, st.UrgencyDays())
	}

	assert.Equal(t, PriorityHot, SignalInventorySurplus.Priority())
	assert.Equal(t, 14, SignalInventorySurplus.UrgencyDays())
	assert.Equal(t, 30, SignalProductDiscontinuation.UrgencyDays())
	assert.Equal(t, 60, SignalLeadershipChange.UrgencyDays())
	assert.Equal(t, 90, SignalCategoryOversupply.UrgencyDays())
	assert.False(t, SignalType("moon_phase").Valid())
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to SignalStatus
		ok       bool
	}{
		{StatusNew, StatusViewed, true},
		{StatusNew, StatusActioned, true},
		{StatusViewed, StatusActioned, true},
		{StatusViewed, StatusDismissed, true},
		{StatusViewed, StatusExpired, true},
		{StatusViewed, StatusNew, false},
		{StatusActioned, StatusViewed, false},
		{StatusActioned, StatusDismissed, false},
		{StatusDismissed, StatusActioned, false},
		{StatusExpired, StatusNew, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestClamp100(t *testing.T) {
	assert.Equal(t, 0.0, Clamp100(-3))
	assert.Equal(t, 100.0, Clamp100(250))
	assert.Equal(t, 62.5, Clamp100(62.5))
}

func TestSPINScoreAndCompleteness(t *testing.T) {
	s := SPIN{
		Situation: SPINEntry{Content: "running SAP", Confidence: 80},
		Problem:   SPINEntry{Content: "excess stock ties up capital", Confidence: 60},
	}
	assert.InDelta(t, 70.0, s.Score(), 1e-9)
	assert.InDelta(t, 50.0, s.Completeness(), 1e-9)

	empty := SPIN{}
	assert.Zero(t, empty.Score())
	assert.Zero(t, empty.Completeness())
}

func TestRiskActive(t *testing.T) {
	assert.True(t, DealRisk{Status: RiskOpen}.Active())
	assert.True(t, DealRisk{Status: RiskMitigating}.Active())
	assert.True(t, DealRisk{Status: RiskRealized}.Active())
	assert.False(t, DealRisk{Status: RiskMitigated}.Active())
	assert.False(t, DealRisk{Status: RiskAccepted}.Active())
}
