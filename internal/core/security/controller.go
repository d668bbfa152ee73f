package security

import (
	"fmt"
)

// CheckResult is the verdict for one command invocation.
type CheckResult struct {
	Allowed         bool   `json:"allowed"`
	Unauthorized    bool   `json:"unauthorized,omitempty"`
	RequiresConfirm bool   `json:"requires_confirm"`
	Reason          string `json:"reason,omitempty"`
}

// SecurityController coordinates the authorization checks.
type SecurityController struct {
	policy       *Policy
	requirements map[Command]Requirement
	folders      *FolderChecker
}

// NewSecurityController creates a controller for policy. portalDir is the
// directory access-control commands are confined to.
func NewSecurityController(policy *Policy, portalDir string) *SecurityController {
	return &SecurityController{
		policy:       policy,
		requirements: DefaultRequirements(),
		folders:      NewFolderChecker(portalDir),
	}
}

// SetRequirements replaces the requirement table. Commands missing from
// reqs become unknown.
func (sc *SecurityController) SetRequirements(reqs map[Command]Requirement) {
	sc.requirements = reqs
}

// CheckCommand decides whether requesterID may run cmd.
func (sc *SecurityController) CheckCommand(cmd Command, requesterID string) *CheckResult {
	req, ok := sc.requirements[cmd]
	if !ok {
		return &CheckResult{
			Allowed: false,
			Reason:  fmt.Sprintf("unknown command: %s", cmd),
		}
	}

	if req.RequiresAuth && !Authorize(requesterID, sc.policy) {
		return &CheckResult{
			Allowed:      false,
			Unauthorized: true,
			Reason:       "Unauthorized.",
		}
	}

	return &CheckResult{
		Allowed:         true,
		RequiresConfirm: req.RequiresConfirm,
	}
}

// ResolveFolder validates a caller-supplied folder name and returns the
// path inside the portal directory it refers to.
func (sc *SecurityController) ResolveFolder(name string) (string, error) {
	return sc.folders.Resolve(name)
}
