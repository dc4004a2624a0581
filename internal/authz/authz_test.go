package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "collecta/pkg/domain"
	dErrors "collecta/pkg/domain-errors"
	"collecta/pkg/requestcontext"
)

func actorWith(role id.Role, scope string) requestcontext.ActorInfo {
	return requestcontext.ActorInfo{ID: id.NewAccountID(), Role: role, Scope: scope}
}

func TestRequire(t *testing.T) {
	tests := []struct {
		name    string
		role    id.Role
		op      Operation
		allowed bool
	}{
		{"contributor submits household", id.RoleContributor, OpSubmitHousehold, true},
		{"contributor cannot approve household", id.RoleContributor, OpApproveHousehold, false},
		{"unit admin approves household", id.RoleUnitAdmin, OpApproveHousehold, true},
		{"unit admin cannot approve unit", id.RoleUnitAdmin, OpApproveUnit, false},
		{"region admin approves unit", id.RoleRegionAdmin, OpApproveUnit, true},
		{"region admin cannot resolve change request", id.RoleRegionAdmin, OpResolveChangeRequest, false},
		{"global admin resolves change request", id.RoleGlobalAdmin, OpResolveChangeRequest, true},
		{"global admin dominates lower operations", id.RoleGlobalAdmin, OpApproveHousehold, true},
		{"contributor cannot add manual entry", id.RoleContributor, OpAddManualEntry, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Require(actorWith(tt.role, "cityx"), tt.op)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
			}
		})
	}
}

func TestRequireRejectsMissingActor(t *testing.T) {
	err := Require(requestcontext.ActorInfo{Role: id.RoleGlobalAdmin}, OpApproveUnit)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestRequireScope(t *testing.T) {
	assert.NoError(t, RequireScope(actorWith(id.RoleGlobalAdmin, ""), "cityz"))
	assert.NoError(t, RequireScope(actorWith(id.RoleRegionAdmin, "cityx"), "cityx"))

	err := RequireScope(actorWith(id.RoleRegionAdmin, "cityx"), "cityz")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

	err = RequireScope(actorWith(id.RoleUnitAdmin, "cityx"), "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}
