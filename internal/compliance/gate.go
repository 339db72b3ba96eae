package compliance

import (
	"fmt"
	"strings"

	"github.com/bnema/medverus-cli/internal/domain"
)

// automatedClientSignatures mark client-identity strings that cannot carry
// the audit guarantees required for sensitive data access.
var automatedClientSignatures = []string{
	"bot", "crawler", "spider", "scraper", "scanner",
	"curl", "wget", "python-requests", "go-http-client", "java/",
}

var spoofableForwardingHeaders = []string{"X-Forwarded-For", "X-Real-IP", "Forwarded"}

type Gate struct {
	policy Policy
}

func NewGate(policy Policy) *Gate {
	if policy.BulkAccessThreshold <= 0 {
		policy.BulkAccessThreshold = DefaultPolicy().BulkAccessThreshold
	}
	return &Gate{policy: policy}
}

// Evaluate runs every check and accumulates violations without short
// circuiting, so one verdict reflects all detected issues. Compliant is
// true iff zero violations were recorded; Risk is the maximum ordinal
// across checks.
func (g *Gate) Evaluate(req domain.RequestContext) domain.ComplianceVerdict {
	var verdict domain.ComplianceVerdict

	g.checkRegion(req, &verdict)
	g.checkClientIdentity(req, &verdict)
	g.checkSensitivePatterns(req, &verdict)
	g.checkBulkAccess(req, &verdict)
	g.checkAuditCompleteness(req, &verdict)

	verdict.Compliant = len(verdict.Violations) == 0
	return verdict
}

func (g *Gate) checkRegion(req domain.RequestContext, verdict *domain.ComplianceVerdict) {
	if req.Region == "" {
		return
	}
	for _, region := range g.policy.RestrictedRegions {
		if strings.EqualFold(req.Region, region) {
			record(verdict, domain.ViolationRestrictedRegion, "origin region "+region+" is restricted", domain.RiskHigh)
			return
		}
	}
}

func (g *Gate) checkClientIdentity(req domain.RequestContext, verdict *domain.ComplianceVerdict) {
	identity := strings.TrimSpace(req.ClientIdentity)
	if identity == "" {
		record(verdict, domain.ViolationMissingIdentity, "client identity string is absent", domain.RiskMedium)
	} else {
		lowered := strings.ToLower(identity)
		for _, signature := range automatedClientSignatures {
			if strings.Contains(lowered, signature) {
				record(verdict, domain.ViolationAutomatedClient, "client identity matches automated tooling signature "+signature, domain.RiskHigh)
				break
			}
		}
	}

	if req.ForwardedFor != "" {
		record(verdict, domain.ViolationSpoofableHeader, "spoofable forwarding header present", domain.RiskLow)
	}
}

func (g *Gate) checkSensitivePatterns(req domain.RequestContext, verdict *domain.ComplianceVerdict) {
	detection := g.Scan(strings.Join([]string{req.Body, req.Path, req.RawQuery}, " "))
	if !detection.Detected() {
		return
	}

	risk := domain.RiskMedium
	switch {
	case detection.Confidence > 0.8:
		risk = domain.RiskCritical
	case detection.Confidence > 0.6 || len(detection.Types) >= 2:
		risk = domain.RiskHigh
	}

	detail := fmt.Sprintf("sensitive patterns detected (%s), confidence %.2f",
		strings.Join(detection.Types, ", "), detection.Confidence)
	record(verdict, domain.ViolationSensitivePattern, detail, risk)
}

func (g *Gate) checkBulkAccess(req domain.RequestContext, verdict *domain.ComplianceVerdict) {
	if req.MaxResults <= g.policy.BulkAccessThreshold {
		return
	}
	for _, endpoint := range g.policy.SensitiveEndpoints {
		if strings.HasPrefix(req.Path, endpoint) {
			detail := fmt.Sprintf("requested %d results on sensitive endpoint %s, elevated authorization required", req.MaxResults, endpoint)
			record(verdict, domain.ViolationBulkAccess, detail, domain.RiskMedium)
			return
		}
	}
}

func (g *Gate) checkAuditCompleteness(req domain.RequestContext, verdict *domain.ComplianceVerdict) {
	if strings.TrimSpace(req.ClientIdentity) == "" || strings.TrimSpace(req.Origin) == "" {
		record(verdict, domain.ViolationAuditTrailIncomplete, "client identity and resolvable origin are both required for the audit trail", domain.RiskHigh)
	}
}

func record(verdict *domain.ComplianceVerdict, code domain.ViolationCode, detail string, risk domain.RiskLevel) {
	verdict.Violations = append(verdict.Violations, domain.Violation{Code: code, Detail: detail})
	verdict.Risk = domain.MaxRisk(verdict.Risk, risk)
}
