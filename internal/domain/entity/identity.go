package entity

// Identity is the authenticated caller resolved by the auth collaborator
type Identity struct {
	UserID    string `json:"user_id"`
	Role      Role   `json:"role"`
	Email     string `json:"email,omitempty"`
	PartnerID string `json:"partner_id,omitempty"`
}

// IsStaff returns true for master and employee roles
func (i *Identity) IsStaff() bool {
	return i != nil && (i.Role == RoleMaster || i.Role == RoleEmployee)
}

// Actor describes who is calling and from where.
// A nil Identity means the caller is unauthenticated.
type Actor struct {
	Identity  *Identity
	IPAddress string
	UserAgent string
}

// SystemActor is used by background jobs
var SystemActor = Actor{Identity: &Identity{UserID: "system", Role: RoleMaster}}

// Authenticated returns true when an identity is attached
func (a Actor) Authenticated() bool {
	return a.Identity != nil
}

// ID returns the caller user id or empty for anonymous callers
func (a Actor) ID() string {
	if a.Identity == nil {
		return ""
	}
	return a.Identity.UserID
}

// Type maps the caller role onto a usage log actor type
func (a Actor) Type() ActorType {
	if a.Identity == nil {
		return ActorTypeAnonymous
	}
	if a.Identity.UserID == "system" {
		return ActorTypeSystem
	}
	switch a.Identity.Role {
	case RoleMaster:
		return ActorTypeMaster
	case RoleEmployee:
		return ActorTypeEmployee
	case RolePartner:
		return ActorTypePartner
	case RoleCustomer:
		return ActorTypeCustomer
	}
	return ActorTypeAnonymous
}
