package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo/portal/core/user"
)

func TestItems(t *testing.T) {
	tests := []struct {
		name        string
		role        user.Role
		wantLen     int
		wantLanding string
		wantLabel   string
	}{
		{name: "administrator", role: user.RoleAdministrator, wantLen: 7, wantLanding: "/dashboard/administrator", wantLabel: "Administrator"},
		{name: "teacher", role: user.RoleTeacher, wantLen: 8, wantLanding: "/dashboard/teacher", wantLabel: "Teacher"},
		{name: "guardian", role: user.RoleGuardian, wantLen: 5, wantLanding: "/dashboard/guardian", wantLabel: "Guardian"},
		{name: "student", role: user.RoleStudent, wantLen: 6, wantLanding: "/dashboard/student", wantLabel: "Student"},
		{name: "unknown", role: user.Role("janitor"), wantLen: 2, wantLanding: "/dashboard", wantLabel: "User"},
		{name: "empty", role: "", wantLen: 2, wantLanding: "/dashboard", wantLabel: "User"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := Items(tt.role)
			assert.Len(t, items, tt.wantLen)
			assert.Equal(t, tt.wantLanding, LandingPath(tt.role))
			assert.Equal(t, tt.wantLabel, Label(tt.role))

			// the landing path is always the first destination
			assert.Equal(t, tt.wantLanding, items[0].Path)
			for _, item := range items {
				assert.NotEmpty(t, item.Label)
				assert.NotEmpty(t, item.Icon)
			}
		})
	}
}

func TestItems_returnsCopy(t *testing.T) {
	items := Items(user.RoleTeacher)
	items[0].Path = "/hacked"
	assert.Equal(t, "/dashboard/teacher", Items(user.RoleTeacher)[0].Path)
}
