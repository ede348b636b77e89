package user

// CanAccess is the self-or-admin rule shared by operations that target a
// single user record.
func CanAccess(actor User, targetID string) bool {
	switch actor.Role {
	case RoleAdmin:
		return true
	case RoleUser:
		return actor.ID != "" && actor.ID == targetID
	default:
		return false
	}
}
