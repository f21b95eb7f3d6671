package rbac

type Role string
type Action string

const (
	RolePublic Role = "public"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead   Action = "read"
	ActionBook   Action = "book"
	ActionManage Action = "manage"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RolePublic:
		return action == ActionRead || action == ActionBook
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RolePublic, RoleAdmin:
		return Role(role)
	default:
		return RolePublic
	}
}
