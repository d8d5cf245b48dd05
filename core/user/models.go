package user

import (
	"strings"

	"github.com/trezcool/masomo/portal/core"
)

// Role is the portal a user is allowed into.
type Role string

// Roles
const (
	RoleAdministrator Role = "administrator"
	RoleTeacher       Role = "teacher"
	RoleGuardian      Role = "guardian"
	RoleStudent       Role = "student"
)

var (
	AllRoles = []Role{RoleAdministrator, RoleTeacher, RoleGuardian, RoleStudent}

	// aliases accepted from the identity service and older clients (short and localized labels)
	roleAliases = map[string]Role{
		"admin":          RoleAdministrator,
		"administrador":  RoleAdministrator,
		"administrateur": RoleAdministrator,
		"professor":      RoleTeacher,
		"professeur":     RoleTeacher,
		"enseignant":     RoleTeacher,
		"parent":         RoleGuardian,
		"responsavel":    RoleGuardian,
		"responsável":    RoleGuardian,
		"tuteur":         RoleGuardian,
		"aluno":          RoleStudent,
		"estudante":      RoleStudent,
		"eleve":          RoleStudent,
		"élève":          RoleStudent,
	}
)

// ParseRole normalizes a role claim. ok is false when the value is not one of the known roles,
// in which case the cleaned value is still returned so that it can be carried around unchanged.
func ParseRole(s string) (role Role, ok bool) {
	s = core.CleanString(s, true /* lower */)
	// accept the teacher's older "admin:owner" style values
	if i := strings.IndexByte(s, ':'); i > 0 {
		s = s[:i]
	}
	for _, r := range AllRoles {
		if s == string(r) {
			return r, true
		}
	}
	if r, found := roleAliases[s]; found {
		return r, true
	}
	return Role(s), false
}

// IsValid reports whether r is one of the known roles.
func (r Role) IsValid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// User is the current user, a projection of the session token claims.
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Role       Role   `json:"role"`
}

// FullName returns "GivenName FamilyName", falling back to the email when both are empty.
func (u User) FullName() string {
	name := strings.TrimSpace(u.GivenName + " " + u.FamilyName)
	if name == "" {
		return u.Email
	}
	return name
}

func (u User) HasRole(role Role) bool { return u.Role == role }

func (u User) IsAdministrator() bool { return u.HasRole(RoleAdministrator) }
func (u User) IsTeacher() bool       { return u.HasRole(RoleTeacher) }
func (u User) IsGuardian() bool      { return u.HasRole(RoleGuardian) }
func (u User) IsStudent() bool       { return u.HasRole(RoleStudent) }
