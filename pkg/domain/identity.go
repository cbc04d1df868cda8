package domain

// AccessLevel is the coarse permission tier granted to a calling application.
type AccessLevel string

const (
	// AccessLevelStandard allows validation and history reads only.
	AccessLevelStandard AccessLevel = "standard"
	// AccessLevelGovernance marks the record-governance caller (MDM tooling)
	// that may soft-delete and restore records.
	AccessLevelGovernance AccessLevel = "governance"
)

// CallerIdentity is the resolved identity for one request. It is supplied by
// the auth collaborator after API-key resolution and never persisted by the
// core.
type CallerIdentity struct {
	AppName          string
	CanDeleteRecords bool
	AccessLevel      AccessLevel
}

// IsZero reports whether no identity was resolved for the request.
func (c CallerIdentity) IsZero() bool {
	return c.AppName == ""
}
