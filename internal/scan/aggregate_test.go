package scan_test

import (
	"fmt"
	"testing"

	"github.com/raysh454/comply/internal/model"
	"github.com/raysh454/comply/internal/scan"
)

func TestAggregate_NoCategories(t *testing.T) {
	r := model.DefaultScanResults()
	o := scan.Aggregate(model.ScanOptions{}, &r)
	if o.Score != 0 || o.Grade != "F" || o.ComplianceStatus != model.StatusCritical {
		t.Fatalf("unexpected overall: %+v", o)
	}
	if len(o.Recommendations) != 1 || o.Recommendations[0] != "No scan categories selected" {
		t.Fatalf("recommendations = %v", o.Recommendations)
	}
}

func TestAggregate_RoundsHalfUp(t *testing.T) {
	r := model.DefaultScanResults()
	r.GDPR.Score = 80
	r.SEO.Score = 81
	o := scan.Aggregate(model.ScanOptions{GDPR: true, SEO: true}, &r)
	if o.Score != 81 {
		t.Fatalf("score = %d, want 81", o.Score)
	}
}

func TestAggregate_FewCategoriesRecommendation(t *testing.T) {
	r := model.DefaultScanResults()
	r.GDPR.Score = 95
	r.GDPR.Recommendations = []string{"keep it up"}
	o := scan.Aggregate(model.ScanOptions{GDPR: true}, &r)

	want := []string{"keep it up", "Consider running a full scan to get comprehensive compliance insights"}
	if fmt.Sprint(o.Recommendations) != fmt.Sprint(want) {
		t.Fatalf("recommendations = %v", o.Recommendations)
	}
	if len(o.PriorityIssues) != 0 {
		t.Fatalf("high score should have no priority issues: %v", o.PriorityIssues)
	}
	if o.Grade != "A" || o.ComplianceStatus != model.StatusExcellent {
		t.Fatalf("overall = %+v", o)
	}
}

func TestAggregate_GenericPriorityIssue(t *testing.T) {
	r := model.DefaultScanResults()
	r.GDPR.Score = 60
	r.Accessibility.Score = 70
	r.Security.Score = 75
	o := scan.Aggregate(model.DefaultScanOptions(), &r)
	if len(o.PriorityIssues) != 1 || o.PriorityIssues[0] != "Review and address the identified issues to improve compliance score" {
		t.Fatalf("priority issues = %v", o.PriorityIssues)
	}
}

func TestAggregate_CriticalFallbackAndCaps(t *testing.T) {
	r := model.DefaultScanResults()
	var recs []string
	for i := 0; i < 4; i++ {
		recs = append(recs, fmt.Sprintf("rec-%d", i))
	}
	r.GDPR.Recommendations = recs
	r.Accessibility.Recommendations = recs
	r.Security.Recommendations = recs
	r.Performance.Recommendations = recs
	r.SEO.Recommendations = recs

	all := model.ScanOptions{GDPR: true, Accessibility: true, Security: true, Performance: true, SEO: true}
	o := scan.Aggregate(all, &r)

	if len(o.Recommendations) != 10 {
		t.Fatalf("recommendations should be capped at 10, got %d", len(o.Recommendations))
	}
	if len(o.PriorityIssues) != 5 {
		t.Fatalf("priority issues should be capped at 5, got %d", len(o.PriorityIssues))
	}
	if o.PriorityIssues[0] != "GDPR: Critical issues found" {
		t.Fatalf("first priority issue = %q", o.PriorityIssues[0])
	}
	if o.PriorityIssues[4] != "SEO: Critical issues found" {
		t.Fatalf("last priority issue = %q", o.PriorityIssues[4])
	}
}

func TestLevels(t *testing.T) {
	grades := map[int]string{100: "A", 90: "A", 89: "B", 80: "B", 79: "C", 70: "C", 69: "D", 60: "D", 59: "F", 0: "F"}
	for score, want := range grades {
		if got := scan.Grade(score); got != want {
			t.Errorf("Grade(%d) = %s, want %s", score, got, want)
		}
	}

	statuses := map[int]string{90: "excellent", 80: "good", 70: "fair", 50: "poor", 49: "critical"}
	for score, want := range statuses {
		if got := scan.ComplianceStatus(score); got != want {
			t.Errorf("ComplianceStatus(%d) = %s, want %s", score, got, want)
		}
	}

	if scan.GDPRLevel(50) != model.GDPRPartiallyCompliant || scan.GDPRLevel(49) != model.GDPRNonCompliant {
		t.Error("GDPR level thresholds")
	}
	if scan.WCAGLevel(90) != model.WCAGAAA || scan.WCAGLevel(80) != model.WCAGAA || scan.WCAGLevel(69) != model.WCAGNonCompliant {
		t.Error("WCAG level thresholds")
	}
	if scan.SecurityLevel(60) != model.SecurityMedium || scan.SecurityLevel(39) != model.SecurityCritical {
		t.Error("security level thresholds")
	}
}
