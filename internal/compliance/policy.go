// Package compliance evaluates outbound requests and inbound payloads
// against the platform's policy set: restricted origins, audit-trail
// completeness, and sensitive-pattern exposure. The gate holds no mutable
// state; a verdict is a pure function of the request and the policy.
package compliance

// Policy is the versioned configuration consumed by the gate. Changing a
// list is a configuration concern, not a code-path concern.
type Policy struct {
	RestrictedRegions   []string
	SensitiveEndpoints  []string
	BulkAccessThreshold int
	MedicalKeywords     []string
}

// DefaultPolicy returns the built-in policy lists shipped with the client.
func DefaultPolicy() Policy {
	return Policy{
		RestrictedRegions: []string{"CU", "IR", "KP", "SY", "RU"},
		SensitiveEndpoints: []string{
			"/api/v1/query",
			"/api/v1/patients",
			"/api/v1/records",
		},
		BulkAccessThreshold: 20,
		MedicalKeywords: []string{
			"diagnosis", "prescription", "patient", "treatment", "symptom",
			"medication", "dosage", "allergy", "pathology", "biopsy",
			"oncology", "radiology", "discharge", "admission", "icd",
		},
	}
}
