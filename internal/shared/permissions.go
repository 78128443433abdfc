package shared

// Core platform permissions. Module permissions (manager, contabilidad,
// marketplace, crm) live in the permission catalog seeded per deployment;
// the constants here cover the administration surface this service exposes.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"

	PermPermissionsView = "permissions.view"

	PermTenantsView = "tenants.view"
	PermTenantsEdit = "tenants.edit"

	PermVerticalsView = "verticals.view"
	PermVerticalsEdit = "verticals.edit"

	PermOverridesEdit = "overrides.edit"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermRolesView,
		PermRolesEdit,
		PermPermissionsView,
		PermTenantsView,
		PermTenantsEdit,
		PermVerticalsView,
		PermVerticalsEdit,
		PermOverridesEdit,
	}
}
