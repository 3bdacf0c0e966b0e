package scan

import (
	"math"
	"strings"

	"github.com/raysh454/comply/internal/model"
)

const (
	maxRecommendations = 10
	maxPriorityIssues  = 5

	// priorityThreshold is the category score below which the category's
	// first issue is promoted to a priority issue.
	priorityThreshold = 50

	noCategoriesRecommendation = "No scan categories selected"
	fullScanRecommendation     = "Consider running a full scan to get comprehensive compliance insights"
	genericPriorityIssue       = "Review and address the identified issues to improve compliance score"
	criticalIssuesFallback     = "Critical issues found"
)

type categoryView struct {
	score           int
	issues          []string
	recommendations []string
}

func view(c model.Category, r *model.ScanResults) categoryView {
	switch c {
	case model.CategoryGDPR:
		return categoryView{r.GDPR.Score, r.GDPR.Issues, r.GDPR.Recommendations}
	case model.CategoryAccessibility:
		return categoryView{r.Accessibility.Score, r.Accessibility.Issues, r.Accessibility.Recommendations}
	case model.CategorySecurity:
		return categoryView{r.Security.Score, r.Security.Issues, r.Security.Recommendations}
	case model.CategoryPerformance:
		return categoryView{r.Performance.Score, r.Performance.Issues, r.Performance.Recommendations}
	case model.CategorySEO:
		return categoryView{r.SEO.Score, r.SEO.Issues, r.SEO.Recommendations}
	}
	return categoryView{}
}

// Aggregate computes the overall result over the categories opts selects.
// Categories that were not selected never contribute.
func Aggregate(opts model.ScanOptions, r *model.ScanResults) model.OverallResult {
	cats := opts.Categories()
	if len(cats) == 0 {
		return model.OverallResult{
			Grade:            "F",
			Recommendations:  []string{noCategoriesRecommendation},
			PriorityIssues:   []string{},
			ComplianceStatus: model.StatusCritical,
		}
	}

	total := 0
	issues := 0
	recs := []string{}
	priority := []string{}
	for _, c := range cats {
		v := view(c, r)
		total += v.score
		issues += len(v.issues)
		recs = append(recs, v.recommendations...)
		if v.score < priorityThreshold {
			first := criticalIssuesFallback
			if len(v.issues) > 0 && v.issues[0] != "" {
				first = v.issues[0]
			}
			priority = append(priority, strings.ToUpper(string(c))+": "+first)
		}
	}

	score := int(math.Round(float64(total) / float64(len(cats))))

	if len(cats) < 3 {
		recs = append(recs, fullScanRecommendation)
	}
	if len(priority) == 0 && score < 80 {
		priority = append(priority, genericPriorityIssue)
	}

	return model.OverallResult{
		Score:            score,
		Grade:            Grade(score),
		TotalIssues:      issues,
		Recommendations:  truncate(recs, maxRecommendations),
		PriorityIssues:   truncate(priority, maxPriorityIssues),
		ComplianceStatus: ComplianceStatus(score),
	}
}

func truncate(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Grade maps a 0-100 score to a letter grade.
func Grade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// ComplianceStatus maps an overall score to its status label.
func ComplianceStatus(score int) string {
	switch {
	case score >= 90:
		return model.StatusExcellent
	case score >= 80:
		return model.StatusGood
	case score >= 70:
		return model.StatusFair
	case score >= 50:
		return model.StatusPoor
	default:
		return model.StatusCritical
	}
}

// GDPRLevel maps a GDPR score to a compliance level.
func GDPRLevel(score int) string {
	switch {
	case score >= 80:
		return model.GDPRCompliant
	case score >= 50:
		return model.GDPRPartiallyCompliant
	default:
		return model.GDPRNonCompliant
	}
}

// WCAGLevel maps an accessibility score to a WCAG conformance level.
func WCAGLevel(score int) string {
	switch {
	case score >= 90:
		return model.WCAGAAA
	case score >= 80:
		return model.WCAGAA
	case score >= 70:
		return model.WCAGA
	default:
		return model.WCAGNonCompliant
	}
}

// SecurityLevel maps a security score to a level.
func SecurityLevel(score int) string {
	switch {
	case score >= 80:
		return model.SecurityHigh
	case score >= 60:
		return model.SecurityMedium
	case score >= 40:
		return model.SecurityLow
	default:
		return model.SecurityCritical
	}
}
