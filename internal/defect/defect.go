// Package defect holds the fixed weld defect taxonomy and the
// confidence-derived severity tiers used across the service.
package defect

import (
	"fmt"
	"strings"
)

// Severity is a confidence-derived tier used for operator messaging.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityNone     Severity = "none"
)

// severityRank orders severities from least to most severe.
var severityRank = map[Severity]int{
	SeverityNone:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Class describes one entry of the fixed model label table.
type Class struct {
	ID          int    // model class index
	Name        string // raw model label
	Code        string // short defect code (LP, PO, CR, ND)
	Description string // human readable description
}

// classTable is the fixed label table of the trained model. Class ids
// outside this table are treated as unknown defect classes.
var classTable = map[int]Class{
	0: {ID: 0, Name: "Difetto1", Code: "LP", Description: "Lack of Penetration"},
	1: {ID: 1, Name: "Difetto2", Code: "PO", Description: "Porosity"},
	2: {ID: 2, Name: "Difetto4", Code: "CR", Description: "Cracks"},
	3: {ID: 3, Name: "NoDifetto", Code: "ND", Description: "No Defect"},
}

// NoDefectClassID is the class index of the clean weld label.
const NoDefectClassID = 3

// ClassByID returns the class table entry for the given model class index.
// Unknown indices yield a synthetic class_<id> entry so that raw model output
// never fails the pipeline.
func ClassByID(id int) Class {
	if c, ok := classTable[id]; ok {
		return c
	}
	name := fmt.Sprintf("class_%d", id)
	return Class{ID: id, Name: name, Code: name, Description: name}
}

// ClassByName looks up a class by its raw model label or defect code.
// The match is case insensitive.
func ClassByName(name string) (Class, bool) {
	for _, c := range classTable {
		if strings.EqualFold(c.Name, name) || strings.EqualFold(c.Code, name) {
			return c, true
		}
	}
	return Class{}, false
}

// Classes returns the full label table ordered by class id.
func Classes() []Class {
	out := make([]Class, 0, len(classTable))
	for i := 0; i < len(classTable); i++ {
		out = append(out, classTable[i])
	}
	return out
}

// IsNoDefect reports whether the class id is the clean weld label.
func IsNoDefect(id int) bool {
	return id == NoDefectClassID
}

// SeverityFromConfidence maps a detection confidence to its severity tier.
// Boundary values belong to the upper tier.
func SeverityFromConfidence(confidence float64) Severity {
	switch {
	case confidence >= 0.90:
		return SeverityCritical
	case confidence >= 0.70:
		return SeverityHigh
	case confidence >= 0.50:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// ParseSeverity converts a stored severity string back to a Severity.
// Unrecognized values map to SeverityNone.
func ParseSeverity(s string) Severity {
	sev := Severity(strings.ToLower(s))
	if _, ok := severityRank[sev]; ok {
		return sev
	}
	return SeverityNone
}

// Rank returns the ordinal rank of a severity, higher is more severe.
func (s Severity) Rank() int {
	return severityRank[s]
}

// MoreSevere reports whether s outranks other.
func (s Severity) MoreSevere(other Severity) bool {
	return severityRank[s] > severityRank[other]
}

// Highest returns the most severe entry of the given severities, or
// SeverityNone when the slice is empty.
func Highest(severities []Severity) Severity {
	highest := SeverityNone
	for _, s := range severities {
		if s.MoreSevere(highest) {
			highest = s
		}
	}
	return highest
}

// Prediction is one entry of a whole-image classification result.
type Prediction struct {
	ClassID    int
	Confidence float64
}

// Reclassify applies the no-defect threshold rule to classifier output.
// When the top class is the clean weld label but its confidence is below
// ndThreshold, the strongest defect class wins instead. The returned
// prediction is the effective verdict.
func Reclassify(predictions []Prediction, ndThreshold float64) Prediction {
	if len(predictions) == 0 {
		return Prediction{ClassID: NoDefectClassID}
	}

	top := predictions[0]
	for _, p := range predictions[1:] {
		if p.Confidence > top.Confidence {
			top = p
		}
	}

	if !IsNoDefect(top.ClassID) || top.Confidence >= ndThreshold {
		return top
	}

	// Clean weld verdict below threshold, pick the strongest defect class.
	var best Prediction
	found := false
	for _, p := range predictions {
		if IsNoDefect(p.ClassID) {
			continue
		}
		if !found || p.Confidence > best.Confidence {
			best = p
			found = true
		}
	}
	if !found {
		return top
	}
	return best
}
