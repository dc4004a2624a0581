// Package authz is the single place that answers "may this actor perform this
// operation". Services consult it before any write; scattered role string
// comparisons are not allowed anywhere else.
package authz

import (
	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
	"collecta/pkg/requestcontext"
)

// Operation names one mutating call exposed by the core.
type Operation string

const (
	OpSubmitHousehold  Operation = "registration.submit_household"
	OpApproveHousehold Operation = "registration.approve_household"
	OpRejectHousehold  Operation = "registration.reject_household"

	OpSubmitUnit  Operation = "registration.submit_unit"
	OpApproveUnit Operation = "registration.approve_unit"
	OpRejectUnit  Operation = "registration.reject_unit"

	OpSubmitAdmin  Operation = "registration.submit_admin"
	OpApproveAdmin Operation = "registration.approve_admin"
	OpRejectAdmin  Operation = "registration.reject_admin"

	OpSubmitPaymentGroup Operation = "payment.submit_group"
	OpVerifyPaymentGroup Operation = "payment.verify_group"
	OpAddManualEntry     Operation = "payment.add_manual_entry"

	OpSubmitChangeRequest  Operation = "changerequest.submit"
	OpResolveChangeRequest Operation = "changerequest.resolve"
)

// minRole is the permission table: the lowest role allowed to perform each
// operation. Scope checks are layered on top via RequireScope.
var minRole = map[Operation]id.Role{
	OpSubmitHousehold:  id.RoleContributor,
	OpApproveHousehold: id.RoleUnitAdmin,
	OpRejectHousehold:  id.RoleUnitAdmin,

	OpSubmitUnit:  id.RoleUnitAdmin,
	OpApproveUnit: id.RoleRegionAdmin,
	OpRejectUnit:  id.RoleRegionAdmin,

	// Admin registration is an application: any authenticated caller may
	// submit, only a global admin resolves it.
	OpSubmitAdmin:  id.RoleContributor,
	OpApproveAdmin: id.RoleGlobalAdmin,
	OpRejectAdmin:  id.RoleGlobalAdmin,

	OpSubmitPaymentGroup: id.RoleContributor,
	OpVerifyPaymentGroup: id.RoleUnitAdmin,
	OpAddManualEntry:     id.RoleUnitAdmin,

	OpSubmitChangeRequest:  id.RoleRegionAdmin,
	OpResolveChangeRequest: id.RoleGlobalAdmin,
}

// Require checks the permission table for op.
func Require(actor requestcontext.ActorInfo, op Operation) error {
	min, ok := minRole[op]
	if !ok {
		return dErrors.Newf(dErrors.CodeInternal, "unknown operation %s", op)
	}
	if actor.ID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "missing actor")
	}
	if !actor.Role.AtLeast(min) {
		return dErrors.Newf(dErrors.CodeForbidden, "role %s may not perform %s", actor.Role, op)
	}
	return nil
}

// RequireScope enforces scope dominance: global admins act anywhere, region
// admins only within their own city, everyone else only within their own
// scope. Unit- and household-level ownership is checked by the services that
// know those relationships.
func RequireScope(actor requestcontext.ActorInfo, targetCity string) error {
	if actor.Role == id.RoleGlobalAdmin {
		return nil
	}
	if targetCity != "" && actor.Scope == targetCity {
		return nil
	}
	return dErrors.Newf(dErrors.CodeForbidden, "scope %q does not cover %q", actor.Scope, targetCity)
}
