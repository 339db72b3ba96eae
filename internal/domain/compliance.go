package domain

// RiskLevel is an ordinal: higher values always dominate when verdicts
// from independent checks are combined.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	}
	return "unknown"
}

func MaxRisk(a, b RiskLevel) RiskLevel {
	if b > a {
		return b
	}
	return a
}

type ViolationCode string

const (
	ViolationRestrictedRegion     ViolationCode = "restricted_region"
	ViolationMissingIdentity      ViolationCode = "missing_client_identity"
	ViolationSpoofableHeader      ViolationCode = "spoofable_forwarding_header"
	ViolationSensitivePattern     ViolationCode = "sensitive_pattern"
	ViolationAutomatedClient      ViolationCode = "automated_client"
	ViolationBulkAccess           ViolationCode = "bulk_access"
	ViolationAuditTrailIncomplete ViolationCode = "audit_trail_incomplete"
)

type Violation struct {
	Code   ViolationCode
	Detail string
}

// ComplianceVerdict is immutable once produced. Compliant is true iff no
// violations were recorded; Risk is the maximum ordinal across all checks.
type ComplianceVerdict struct {
	Compliant  bool
	Violations []Violation
	Risk       RiskLevel
}

func (v ComplianceVerdict) Categories() []string {
	seen := make(map[ViolationCode]struct{}, len(v.Violations))
	categories := make([]string, 0, len(v.Violations))
	for _, violation := range v.Violations {
		if _, ok := seen[violation.Code]; ok {
			continue
		}
		seen[violation.Code] = struct{}{}
		categories = append(categories, string(violation.Code))
	}
	return categories
}

// RequestContext describes one outbound request as seen by the compliance
// gate: addressing, free-text payload, and client identity.
type RequestContext struct {
	Method         string
	Path           string
	RawQuery       string
	Body           string
	ClientIdentity string
	Origin         string
	Region         string
	ForwardedFor   string
	MaxResults     int
}
