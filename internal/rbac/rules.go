package rbac

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

const (
	PermTestTake         = "test:take"
	PermTestViewOwn      = "test:view-own"
	PermTestViewAll      = "test:view-all"
	PermDashboardView    = "dashboard:view"
	PermMaterialDownload = "material:download"
	PermMaterialUpload   = "material:upload"
	PermQuestionManage   = "question:manage"
	PermSessionManage    = "session:manage"
	PermAuditView        = "audit:view"
)

// RolePermissions is the default policy. A trailing * matches any suffix.
var RolePermissions = map[string][]string{
	RoleStudent: {
		PermTestTake,
		PermTestViewOwn,
		PermDashboardView,
		PermMaterialDownload,
	},
	RoleAdmin: {
		"*",
	},
}
