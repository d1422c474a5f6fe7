package donation

import (
	"fmt"
	"strings"
	"time"
)

// ApprovalMode selects how pending claims get approved.
type ApprovalMode string

const (
	// ApprovalManual requires an authority to call Approve.
	ApprovalManual ApprovalMode = "manual"
	// ApprovalAuto approves claims once they have been pending for Delay.
	ApprovalAuto ApprovalMode = "auto"
)

// SystemApprover is recorded as ApprovedBy for automatic approvals.
const SystemApprover = "system:auto-approval"

// ApprovalPolicy configures claim approval.
type ApprovalPolicy struct {
	Mode  ApprovalMode
	Delay time.Duration
}

// ParseApprovalMode parses "manual" or "auto". Empty means manual.
func ParseApprovalMode(s string) (ApprovalMode, error) {
	switch ApprovalMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ApprovalManual:
		return ApprovalManual, nil
	case ApprovalAuto:
		return ApprovalAuto, nil
	default:
		return "", fmt.Errorf("unknown approval mode %q (want manual or auto)", s)
	}
}

// due reports whether a claim made at claimedAt should be auto-approved at now.
func (p ApprovalPolicy) due(claimedAt, now time.Time) bool {
	return p.Mode == ApprovalAuto && !claimedAt.Add(p.Delay).After(now)
}

// immediate reports whether claims are approved as soon as they are made.
func (p ApprovalPolicy) immediate() bool {
	return p.Mode == ApprovalAuto && p.Delay <= 0
}
