// Package compliance classifies weld defects against welding standards and
// produces pass/fail verdicts with repair recommendations.
package compliance

import (
	"fmt"
	"strings"

	"github.com/ZenleX-Dost/RadiKal-V2.0-sub001/internal/errors"
)

// Standard identifies a welding code used for compliance checking.
type Standard string

const (
	StandardAWSD11   Standard = "AWS D1.1"
	StandardASMEBPVC Standard = "ASME BPVC"
	StandardISO5817B Standard = "ISO 5817-B"
	StandardISO5817C Standard = "ISO 5817-C"
	StandardISO5817D Standard = "ISO 5817-D"
	StandardAPI1104  Standard = "API 1104"
)

// Status is the compliance verdict for a defect.
type Status string

const (
	StatusPass           Status = "PASS"
	StatusFail           Status = "FAIL"
	StatusReviewRequired Status = "REVIEW_REQUIRED"
)

// Level is the severity tier assigned under a welding standard. Unlike the
// confidence-derived severity used for operator messaging, this includes an
// ACCEPTABLE tier for clean welds.
type Level string

const (
	LevelCritical   Level = "CRITICAL"
	LevelHigh       Level = "HIGH"
	LevelMedium     Level = "MEDIUM"
	LevelLow        Level = "LOW"
	LevelAcceptable Level = "ACCEPTABLE"
)

// levelRank orders levels from least to most restrictive.
var levelRank = map[Level]int{
	LevelAcceptable: 0,
	LevelLow:        1,
	LevelMedium:     2,
	LevelHigh:       3,
	LevelCritical:   4,
}

// StandardInfo describes a welding standard for the standards library endpoint.
type StandardInfo struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Organization string `json:"organization"`
	Year         string `json:"year"`
	Application  string `json:"application"`
}

var standardsLibrary = []StandardInfo{
	{
		Code:         string(StandardAWSD11),
		Name:         "AWS D1.1 - Structural Welding Code - Steel",
		Organization: "American Welding Society",
		Year:         "2020",
		Application:  "Structural steel welding",
	},
	{
		Code:         string(StandardASMEBPVC),
		Name:         "ASME Boiler and Pressure Vessel Code",
		Organization: "American Society of Mechanical Engineers",
		Year:         "2021",
		Application:  "Pressure vessels and boilers",
	},
	{
		Code:         string(StandardISO5817B),
		Name:         "ISO 5817 Quality Level B",
		Organization: "International Organization for Standardization",
		Year:         "2014",
		Application:  "High quality welds",
	},
	{
		Code:         string(StandardISO5817C),
		Name:         "ISO 5817 Quality Level C",
		Organization: "International Organization for Standardization",
		Year:         "2014",
		Application:  "Standard quality welds",
	},
	{
		Code:         string(StandardISO5817D),
		Name:         "ISO 5817 Quality Level D",
		Organization: "International Organization for Standardization",
		Year:         "2014",
		Application:  "Moderate quality welds",
	},
	{
		Code:         string(StandardAPI1104),
		Name:         "API 1104 - Welding of Pipelines and Related Facilities",
		Organization: "American Petroleum Institute",
		Year:         "2021",
		Application:  "Pipeline welding",
	},
}

// Standards returns the welding standards library.
func Standards() []StandardInfo {
	out := make([]StandardInfo, len(standardsLibrary))
	copy(out, standardsLibrary)
	return out
}

// AllStandards returns every supported standard identifier.
func AllStandards() []Standard {
	return []Standard{
		StandardAWSD11, StandardASMEBPVC,
		StandardISO5817B, StandardISO5817C, StandardISO5817D,
		StandardAPI1104,
	}
}

// ParseStandard resolves a standard code, case insensitively.
func ParseStandard(code string) (Standard, bool) {
	for _, s := range AllStandards() {
		if strings.EqualFold(string(s), code) {
			return s, true
		}
	}
	return "", false
}

// Limits holds the dimensional acceptance limits of a standard for one defect
// type. Nil pointers mean the standard sets no limit for that measurement.
type Limits struct {
	MaxLengthMM       *float64 `json:"max_length_mm,omitempty"`
	MaxDepthMM        *float64 `json:"max_depth_mm,omitempty"`
	MaxDiameterMM     *float64 `json:"max_diameter_mm,omitempty"`
	MaxDensityPercent *float64 `json:"max_density_percent,omitempty"`
	MaxCountPerInch   *int     `json:"max_count_per_inch,omitempty"`
}

// Rule holds the acceptance rules for one defect type.
type Rule struct {
	BaseSeverity Level
	Description  string
	Action       string
	Limits       map[Standard]Limits
}

func f(v float64) *float64 { return &v }
func i(v int) *int         { return &v }

// defectRules is the acceptance rule table keyed by defect code (LP, PO, CR, ND).
var defectRules = map[string]Rule{
	"CR": {
		BaseSeverity: LevelCritical,
		Description:  "Cracks are linear discontinuities that compromise weld integrity",
		Action:       "REJECT - Repair required before use",
		Limits: map[Standard]Limits{
			StandardAWSD11:   {MaxLengthMM: f(0)}, // no cracks permitted
			StandardISO5817B: {MaxLengthMM: f(0)},
		},
	},
	"LP": {
		BaseSeverity: LevelCritical,
		Description:  "Incomplete fusion at weld root reduces joint strength",
		Action:       "REJECT - Verify penetration depth and repair if exceeded",
		Limits: map[Standard]Limits{
			StandardAWSD11:   {MaxDepthMM: f(1.0), MaxLengthMM: f(25)},
			StandardISO5817B: {MaxDepthMM: f(0.5), MaxLengthMM: f(20)},
		},
	},
	"PO": {
		BaseSeverity: LevelMedium,
		Description:  "Gas pockets in weld metal - assess size and distribution",
		Action:       "REVIEW - Accept if within tolerance, repair if excessive",
		Limits: map[Standard]Limits{
			StandardAWSD11:   {MaxDiameterMM: f(3.0), MaxDensityPercent: f(3.0), MaxCountPerInch: i(12)},
			StandardISO5817B: {MaxDiameterMM: f(2.0), MaxDensityPercent: f(2.0)},
		},
	},
	"ND": {
		BaseSeverity: LevelAcceptable,
		Description:  "Weld meets quality standards",
		Action:       "ACCEPT - Proceed to next inspection stage",
	},
}

var repairRecommendations = map[string]string{
	"CR": "Grind out crack completely, V-groove, and re-weld with approved procedure",
	"LP": "Back-gouge to remove incomplete penetration, then re-weld root pass",
	"PO": "If excessive, grind out porous area and fill with sound weld metal",
}

const defaultRepairRecommendation = "Consult welding engineer for repair procedure"

// Region carries the measured dimensions of a defect in the radiograph.
// Measurements are in pixels until calibration converts them to mm.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Area   float64 `json:"area"`
}

// Result is the outcome of classifying one defect under one standard.
type Result struct {
	Severity             Level    `json:"severity"`
	ComplianceStatus     Status   `json:"compliance_status"`
	Standard             string   `json:"standard"`
	Description          string   `json:"description"`
	RecommendedAction    string   `json:"recommended_action"`
	Reasons              []string `json:"reasons"`
	PassFail             bool     `json:"pass_fail"`
	RepairRecommendation string   `json:"repair_recommendation,omitempty"`
}

// Classifier classifies defect severity under a single welding standard.
type Classifier struct {
	standard Standard
}

// NewClassifier returns a classifier bound to the given standard.
func NewClassifier(standard Standard) *Classifier {
	return &Classifier{standard: standard}
}

// Standard returns the welding standard the classifier is bound to.
func (c *Classifier) Standard() Standard {
	return c.standard
}

// reviewThreshold is the confidence below which a manual review is forced.
const reviewThreshold = 0.70

// Classify determines severity and compliance status for a defect.
// Low model confidence forces REVIEW_REQUIRED; a standard violation forces
// FAIL and escalates medium or low base severities one tier.
func (c *Classifier) Classify(defectType string, confidence float64, region *Region, materialThickness float64) Result {
	defectType = strings.ToUpper(defectType)

	rule, ok := defectRules[defectType]
	if !ok {
		return c.defaultResult()
	}

	severity := rule.BaseSeverity
	status := StatusPass
	reasons := []string{}

	if confidence < reviewThreshold {
		reasons = append(reasons, fmt.Sprintf("Low confidence (%.1f%%) - manual review recommended", confidence*100))
		status = StatusReviewRequired
	}

	if limits, hasLimits := rule.Limits[c.standard]; hasLimits {
		violations := checkLimits(defectType, c.standard, region, &limits, materialThickness)
		if len(violations) > 0 {
			status = StatusFail
			reasons = append(reasons, violations...)

			switch rule.BaseSeverity {
			case LevelMedium:
				severity = LevelHigh
			case LevelLow:
				severity = LevelMedium
			}
		}
	}

	result := Result{
		Severity:          severity,
		ComplianceStatus:  status,
		Standard:          string(c.standard),
		Description:       rule.Description,
		RecommendedAction: rule.Action,
		Reasons:           reasons,
		PassFail:          status == StatusPass,
	}

	if status == StatusFail {
		result.RepairRecommendation = RepairRecommendation(defectType)
	}

	return result
}

// checkLimits evaluates the defect region against the standard's limits.
// Dimensional checks beyond outright prohibition need pixel-to-mm calibration;
// until calibrated, only zero-tolerance limits produce violations.
func checkLimits(defectType string, standard Standard, region *Region, limits *Limits, materialThickness float64) []string {
	_ = materialThickness

	if region == nil {
		return nil
	}

	var violations []string
	if limits.MaxLengthMM != nil && *limits.MaxLengthMM == 0 {
		violations = append(violations, fmt.Sprintf("%s not permitted per %s", defectType, standard))
	}
	return violations
}

// RepairRecommendation returns the repair procedure for a defect type.
func RepairRecommendation(defectType string) string {
	if rec, ok := repairRecommendations[strings.ToUpper(defectType)]; ok {
		return rec
	}
	return defaultRepairRecommendation
}

// defaultResult is returned for unknown defect types.
func (c *Classifier) defaultResult() Result {
	return Result{
		Severity:          LevelMedium,
		ComplianceStatus:  StatusReviewRequired,
		Standard:          string(c.standard),
		Description:       "Unable to classify - manual review required",
		RecommendedAction: "Submit for manual inspection",
		Reasons:           []string{"Unknown defect type"},
		PassFail:          false,
	}
}

// Criteria is the human-readable acceptance criteria for one defect type.
type Criteria struct {
	DefectType     string  `json:"defect_type"`
	Standard       string  `json:"standard"`
	BaseSeverity   Level   `json:"base_severity"`
	Description    string  `json:"description"`
	Action         string  `json:"action"`
	StandardLimits *Limits `json:"standard_limits,omitempty"`
}

// AcceptanceCriteria returns the acceptance criteria for a defect type under
// the classifier's standard.
func (c *Classifier) AcceptanceCriteria(defectType string) (Criteria, error) {
	defectType = strings.ToUpper(defectType)

	rule, ok := defectRules[defectType]
	if !ok {
		return Criteria{}, errors.Newf("unknown defect type: %s", defectType).
			Category(errors.CategoryValidation).
			Context("defect_type", defectType).
			Build()
	}

	criteria := Criteria{
		DefectType:   defectType,
		Standard:     string(c.standard),
		BaseSeverity: rule.BaseSeverity,
		Description:  rule.Description,
		Action:       rule.Action,
	}
	if limits, hasLimits := rule.Limits[c.standard]; hasLimits {
		criteria.StandardLimits = &limits
	}
	return criteria, nil
}

// MultiResult is the outcome of checking a defect against several standards.
type MultiResult struct {
	IndividualResults       map[string]Result `json:"individual_results"`
	MostRestrictiveStandard string            `json:"most_restrictive_standard"`
	FinalCompliance         Status            `json:"final_compliance"`
	FinalSeverity           Level             `json:"final_severity"`
}

// Checker runs compliance checks against multiple welding standards.
type Checker struct {
	classifiers map[Standard]*Classifier
}

// NewChecker returns a checker covering every supported standard.
func NewChecker() *Checker {
	classifiers := make(map[Standard]*Classifier)
	for _, s := range AllStandards() {
		classifiers[s] = NewClassifier(s)
	}
	return &Checker{classifiers: classifiers}
}

// CheckMulti classifies a defect under each of the given standards and
// reports the most restrictive result. Defaults to AWS D1.1 and ISO 5817-B
// when no standards are given.
func (c *Checker) CheckMulti(defectType string, confidence float64, region *Region, standards []Standard) MultiResult {
	if len(standards) == 0 {
		standards = []Standard{StandardAWSD11, StandardISO5817B}
	}

	results := make(map[string]Result, len(standards))
	mostRestrictive := MultiResult{
		FinalCompliance: StatusPass,
		FinalSeverity:   LevelAcceptable,
	}

	for _, standard := range standards {
		classifier, ok := c.classifiers[standard]
		if !ok {
			continue
		}
		result := classifier.Classify(defectType, confidence, region, 0)
		results[string(standard)] = result

		if levelRank[result.Severity] > levelRank[mostRestrictive.FinalSeverity] {
			mostRestrictive.MostRestrictiveStandard = string(standard)
			mostRestrictive.FinalCompliance = result.ComplianceStatus
			mostRestrictive.FinalSeverity = result.Severity
		}
	}

	mostRestrictive.IndividualResults = results
	return mostRestrictive
}
