package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"attempt:start",
		"attempt:submit",
		"attempt:view-own",
		"progress:view-own",
		"certificate:generate-own",
		"user:change_password",
	},
	"teacher": {
		"attempt:view-all",
		"progress:view-all",
		"users:bulk_upsert",
		"users:list",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
