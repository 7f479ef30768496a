package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"service": {
		"predict:run",
	},
	"analyst": {
		"predict:run",
		"models:list",
	},
	"admin": {
		"*", // everything
	},
}
