package constants

// Organization permissions
const (
	// Admin permissions
	PermSuperAdminFull  = "classflow.super-admin.full-permit"
	PermStudioOwnerFull = "classflow.owner.full-permit"
	PermFrontDeskFull   = "classflow.front-desk.full-permit"
	PermInstructorFull  = "classflow.instructor.full-permit"
	PermCustomerFull    = "classflow.customer.full-permit"

	// Special permissions
	PermAny = "any"
)

// Permission groups for convenience
var (
	StaffPermissions = []string{
		PermSuperAdminFull,
		PermStudioOwnerFull,
		PermFrontDeskFull,
	}
)
