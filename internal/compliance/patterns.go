package compliance

import (
	"regexp"
	"strings"
)

// sensitivePatterns are the fixed PHI-like detectors. Each is a heuristic
// structural match, not a definitive identifier check.
var sensitivePatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"phone", regexp.MustCompile(`\b\d{3}[-.]\d{3}[-.]\d{4}\b`)},
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"mrn", regexp.MustCompile(`(?i)\bMRN[:\s]?\d{6,10}\b`)},
	{"dob", regexp.MustCompile(`\b(?:0?[1-9]|1[0-2])/(?:0?[1-9]|[12]\d|3[01])/(?:19|20)\d{2}\b`)},
	{"zip", regexp.MustCompile(`\b\d{5}(?:-\d{4})?\b`)},
	{"ip", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
}

// medicalTermsType is reported as its own detection type once keyword
// density passes the threshold below.
const (
	medicalTermsType      = "medical_terms"
	medicalTermsThreshold = 3
)

// Detection summarizes one sensitive-pattern scan over free text.
type Detection struct {
	Types      []string
	Matches    int
	Confidence float64
}

func (d Detection) Detected() bool {
	return len(d.Types) > 0
}

// Scan runs every pattern detector plus the medical-keyword count over
// text. Confidence = min(1.0, 0.2*distinct_types + 0.1*total_matches).
func (g *Gate) Scan(text string) Detection {
	var detection Detection
	if text == "" {
		return detection
	}

	for _, pattern := range sensitivePatterns {
		matches := pattern.re.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		detection.Types = append(detection.Types, pattern.name)
		detection.Matches += len(matches)
	}

	if keywords := g.countMedicalKeywords(text); keywords >= medicalTermsThreshold {
		detection.Types = append(detection.Types, medicalTermsType)
		detection.Matches += keywords
	}

	detection.Confidence = 0.2*float64(len(detection.Types)) + 0.1*float64(detection.Matches)
	if detection.Confidence > 1.0 {
		detection.Confidence = 1.0
	}

	return detection
}

// ScanTypes reports only the distinct pattern types detected in text,
// for callers that flag payloads without needing the full detection.
func (g *Gate) ScanTypes(text string) []string {
	return g.Scan(text).Types
}

func (g *Gate) countMedicalKeywords(text string) int {
	lowered := strings.ToLower(text)
	count := 0
	for _, keyword := range g.policy.MedicalKeywords {
		count += strings.Count(lowered, keyword)
	}
	return count
}
