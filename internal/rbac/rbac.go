package rbac

type Role string
type Action string

const (
	RoleViewer  Role = "viewer"
	RoleAgent   Role = "agent"
	RoleDecider Role = "decider"
	RoleAdmin   Role = "admin"
)

const (
	ActionRead        Action = "read"
	ActionCollaborate Action = "collaborate"
	ActionDecide      Action = "decide"
	ActionAdmin       Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleDecider:
		return action == ActionRead || action == ActionCollaborate || action == ActionDecide
	case RoleAgent:
		return action == ActionRead || action == ActionCollaborate
	case RoleViewer:
		return action == ActionRead
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleViewer, RoleAgent, RoleDecider, RoleAdmin:
		return Role(role)
	default:
		return RoleViewer
	}
}
