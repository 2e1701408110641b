package domain

// Identity is the authenticated principal held by a session.
type Identity struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Role       Role    `json:"role"`
	Department *string `json:"department"`
	Active     bool    `json:"active"`
}

// IdentityFromUser projects the session-relevant fields of a user.
func IdentityFromUser(u User) Identity {
	return Identity{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		Department: u.Department,
		Active:     u.Active,
	}
}

// Scoped reports whether records must be restricted to the identity's
// department. SuperAdmins carry no department and see everything.
func (i Identity) Scoped() bool {
	return i.Department != nil
}

// DepartmentName returns the department or an empty string.
func (i Identity) DepartmentName() string {
	if i.Department == nil {
		return ""
	}
	return *i.Department
}
