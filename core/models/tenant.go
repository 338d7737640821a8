package models

import "regexp"

var tenantPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// ValidateTenantID rejects tenant identifiers that cannot be used as a storage prefix.
// The tenant value itself is trusted; this only guards the on-disk layout.
func ValidateTenantID(tenantID string) error {
	if !tenantPattern.MatchString(tenantID) || tenantID == "." || tenantID == ".." {
		return Invalid("tenant_id", "%q is not a valid tenant identifier", tenantID)
	}
	return nil
}
