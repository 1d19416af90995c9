package defect

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityFromConfidence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		confidence float64
		want       Severity
	}{
		{0.99, SeverityCritical},
		{0.90, SeverityCritical}, // boundary belongs to the upper tier
		{0.89, SeverityHigh},
		{0.70, SeverityHigh},
		{0.69, SeverityMedium},
		{0.50, SeverityMedium},
		{0.49, SeverityLow},
		{0.0, SeverityLow},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("confidence_%.2f", tc.confidence), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, SeverityFromConfidence(tc.confidence))
		})
	}
}

func TestClassByID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Difetto1", ClassByID(0).Name)
	assert.Equal(t, "LP", ClassByID(0).Code)
	assert.Equal(t, "Difetto2", ClassByID(1).Name)
	assert.Equal(t, "Porosity", ClassByID(1).Description)
	assert.Equal(t, "Difetto4", ClassByID(2).Name)
	assert.Equal(t, "CR", ClassByID(2).Code)
	assert.Equal(t, "NoDifetto", ClassByID(3).Name)
	assert.Equal(t, "No Defect", ClassByID(3).Description)
}

func TestClassByIDUnknown(t *testing.T) {
	t.Parallel()

	c := ClassByID(7)
	assert.Equal(t, "class_7", c.Name)
	assert.Equal(t, 7, c.ID)
}

func TestClassByName(t *testing.T) {
	t.Parallel()

	c, ok := ClassByName("difetto4")
	assert.True(t, ok)
	assert.Equal(t, 2, c.ID)

	c, ok = ClassByName("po")
	assert.True(t, ok)
	assert.Equal(t, 1, c.ID)

	_, ok = ClassByName("unknown")
	assert.False(t, ok)
}

func TestClassesOrdered(t *testing.T) {
	t.Parallel()

	classes := Classes()
	assert.Len(t, classes, 4)
	for i, c := range classes {
		assert.Equal(t, i, c.ID)
	}
}

func TestHighest(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SeverityNone, Highest(nil))
	assert.Equal(t, SeverityCritical, Highest([]Severity{SeverityLow, SeverityCritical, SeverityMedium}))
	assert.Equal(t, SeverityMedium, Highest([]Severity{SeverityLow, SeverityMedium}))
}

func TestParseSeverity(t *testing.T) {
	t.Parallel()

	assert.Equal(t, SeverityHigh, ParseSeverity("HIGH"))
	assert.Equal(t, SeverityNone, ParseSeverity("bogus"))
}

func TestReclassifyAcceptsConfidentNoDefect(t *testing.T) {
	t.Parallel()

	got := Reclassify([]Prediction{
		{ClassID: 3, Confidence: 0.92},
		{ClassID: 1, Confidence: 0.05},
	}, 0.7)
	assert.Equal(t, NoDefectClassID, got.ClassID)
}

func TestReclassifyBelowThresholdPicksStrongestDefect(t *testing.T) {
	t.Parallel()

	got := Reclassify([]Prediction{
		{ClassID: 3, Confidence: 0.55},
		{ClassID: 1, Confidence: 0.30},
		{ClassID: 2, Confidence: 0.40},
	}, 0.7)
	assert.Equal(t, 2, got.ClassID)
	assert.InDelta(t, 0.40, got.Confidence, 1e-9)
}

func TestReclassifyDefectTopClassUnchanged(t *testing.T) {
	t.Parallel()

	got := Reclassify([]Prediction{
		{ClassID: 0, Confidence: 0.80},
		{ClassID: 3, Confidence: 0.10},
	}, 0.7)
	assert.Equal(t, 0, got.ClassID)
}

func TestReclassifyEmpty(t *testing.T) {
	t.Parallel()

	got := Reclassify(nil, 0.7)
	assert.Equal(t, NoDefectClassID, got.ClassID)
}
