package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyCrackFailsUnderAWS(t *testing.T) {
	t.Parallel()

	c := NewClassifier(StandardAWSD11)
	region := &Region{X: 10, Y: 20, Width: 40, Height: 8, Area: 320}

	result := c.Classify("CR", 0.95, region, 0)

	assert.Equal(t, LevelCritical, result.Severity)
	assert.Equal(t, StatusFail, result.ComplianceStatus)
	assert.False(t, result.PassFail)
	assert.Contains(t, result.Reasons[0], "not permitted")
	assert.Contains(t, result.RepairRecommendation, "Grind out crack")
}

func TestClassifyLowConfidenceForcesReview(t *testing.T) {
	t.Parallel()

	c := NewClassifier(StandardAWSD11)

	result := c.Classify("PO", 0.55, nil, 0)

	assert.Equal(t, StatusReviewRequired, result.ComplianceStatus)
	assert.Equal(t, LevelMedium, result.Severity)
	assert.False(t, result.PassFail)
	require.Len(t, result.Reasons, 1)
	assert.Contains(t, result.Reasons[0], "Low confidence")
}

func TestClassifyPorosityPassesWithoutRegion(t *testing.T) {
	t.Parallel()

	c := NewClassifier(StandardAWSD11)

	result := c.Classify("PO", 0.85, nil, 0)

	assert.Equal(t, StatusPass, result.ComplianceStatus)
	assert.Equal(t, LevelMedium, result.Severity)
	assert.True(t, result.PassFail)
	assert.Empty(t, result.RepairRecommendation)
}

func TestClassifyNoDefect(t *testing.T) {
	t.Parallel()

	c := NewClassifier(StandardISO5817B)

	result := c.Classify("ND", 0.97, nil, 0)

	assert.Equal(t, LevelAcceptable, result.Severity)
	assert.Equal(t, StatusPass, result.ComplianceStatus)
	assert.True(t, result.PassFail)
}

func TestClassifyUnknownDefectType(t *testing.T) {
	t.Parallel()

	c := NewClassifier(StandardAWSD11)

	result := c.Classify("XX", 0.9, nil, 0)

	assert.Equal(t, LevelMedium, result.Severity)
	assert.Equal(t, StatusReviewRequired, result.ComplianceStatus)
	assert.False(t, result.PassFail)
}

func TestClassifyCaseInsensitive(t *testing.T) {
	t.Parallel()

	c := NewClassifier(StandardAWSD11)
	region := &Region{Width: 10, Height: 10, Area: 100}

	result := c.Classify("cr", 0.95, region, 0)
	assert.Equal(t, StatusFail, result.ComplianceStatus)
}

func TestAcceptanceCriteria(t *testing.T) {
	t.Parallel()

	c := NewClassifier(StandardAWSD11)

	criteria, err := c.AcceptanceCriteria("PO")
	require.NoError(t, err)

	assert.Equal(t, "PO", criteria.DefectType)
	assert.Equal(t, "AWS D1.1", criteria.Standard)
	assert.Equal(t, LevelMedium, criteria.BaseSeverity)
	require.NotNil(t, criteria.StandardLimits)
	require.NotNil(t, criteria.StandardLimits.MaxDiameterMM)
	assert.InDelta(t, 3.0, *criteria.StandardLimits.MaxDiameterMM, 1e-9)
}

func TestAcceptanceCriteriaNoLimitsForStandard(t *testing.T) {
	t.Parallel()

	c := NewClassifier(StandardAPI1104)

	criteria, err := c.AcceptanceCriteria("CR")
	require.NoError(t, err)
	assert.Nil(t, criteria.StandardLimits)
}

func TestAcceptanceCriteriaUnknownType(t *testing.T) {
	t.Parallel()

	c := NewClassifier(StandardAWSD11)

	_, err := c.AcceptanceCriteria("XX")
	assert.Error(t, err)
}

func TestParseStandard(t *testing.T) {
	t.Parallel()

	s, ok := ParseStandard("aws d1.1")
	assert.True(t, ok)
	assert.Equal(t, StandardAWSD11, s)

	_, ok = ParseStandard("EN 1090")
	assert.False(t, ok)
}

func TestStandardsLibrary(t *testing.T) {
	t.Parallel()

	standards := Standards()
	assert.Len(t, standards, 6)
	assert.Equal(t, "AWS D1.1", standards[0].Code)
	assert.Equal(t, "American Welding Society", standards[0].Organization)
}

func TestCheckMultiMostRestrictive(t *testing.T) {
	t.Parallel()

	checker := NewChecker()
	region := &Region{Width: 30, Height: 6, Area: 180}

	result := checker.CheckMulti("CR", 0.95, region, nil)

	assert.Len(t, result.IndividualResults, 2)
	assert.Equal(t, LevelCritical, result.FinalSeverity)
	assert.Equal(t, StatusFail, result.FinalCompliance)
	assert.NotEmpty(t, result.MostRestrictiveStandard)
}

func TestCheckMultiNoDefectStaysAcceptable(t *testing.T) {
	t.Parallel()

	checker := NewChecker()

	result := checker.CheckMulti("ND", 0.95, nil, []Standard{StandardAWSD11, StandardAPI1104})

	assert.Equal(t, LevelAcceptable, result.FinalSeverity)
	assert.Equal(t, StatusPass, result.FinalCompliance)
}

func TestRepairRecommendationFallback(t *testing.T) {
	t.Parallel()

	assert.Equal(t, defaultRepairRecommendation, RepairRecommendation("XX"))
	assert.Contains(t, RepairRecommendation("lp"), "Back-gouge")
}
