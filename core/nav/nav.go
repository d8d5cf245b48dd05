// Package nav maps roles to the portal destinations they may visit.
//
// It is the single source for landing paths, menus and role labels, used both by the
// route guards (to compute redirect targets) and by the screens (to render menus).
package nav

import "github.com/trezcool/masomo/portal/core/user"

const (
	// DefaultLandingPath is where users with an unknown role land.
	DefaultLandingPath = "/dashboard"
	ProfilePath        = "/dashboard/profile"
)

// Item is a navigation destination.
type Item struct {
	Path        string `json:"path"`
	Label       string `json:"label"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

type entry struct {
	label   string
	landing string
	items   []Item
}

var (
	fallback = entry{
		label:   "User",
		landing: DefaultLandingPath,
		items: []Item{
			{Path: DefaultLandingPath, Label: "Dashboard", Icon: "home", Description: "Overview of your account"},
			{Path: ProfilePath, Label: "Profile", Icon: "user", Description: "Your personal information"},
		},
	}

	table = map[user.Role]entry{
		user.RoleAdministrator: {
			label:   "Administrator",
			landing: "/dashboard/administrator",
			items: []Item{
				{Path: "/dashboard/administrator", Label: "Overview", Icon: "home", Description: "School at a glance"},
				{Path: "/dashboard/administrator/users", Label: "Users", Icon: "users", Description: "Manage accounts and roles"},
				{Path: "/dashboard/administrator/classes", Label: "Classes", Icon: "layers", Description: "Classes, courses and assignments"},
				{Path: "/dashboard/administrator/attendance", Label: "Attendance", Icon: "calendar-check", Description: "School-wide attendance reports"},
				{Path: "/dashboard/administrator/grades", Label: "Grades", Icon: "award", Description: "Publish official marks"},
				{Path: "/dashboard/administrator/prizes", Label: "Prizes", Icon: "gift", Description: "Prize budgets and rewards"},
				{Path: "/dashboard/administrator/settings", Label: "Settings", Icon: "settings", Description: "School settings"},
			},
		},
		user.RoleTeacher: {
			label:   "Teacher",
			landing: "/dashboard/teacher",
			items: []Item{
				{Path: "/dashboard/teacher", Label: "Overview", Icon: "home", Description: "Your day at a glance"},
				{Path: "/dashboard/teacher/classes", Label: "Classes", Icon: "layers", Description: "Classes you teach"},
				{Path: "/dashboard/teacher/students", Label: "Students", Icon: "users", Description: "Students in your classes"},
				{Path: "/dashboard/teacher/grades", Label: "Grades", Icon: "award", Description: "Record and review marks"},
				{Path: "/dashboard/teacher/attendance", Label: "Attendance", Icon: "calendar-check", Description: "Take and review attendance"},
				{Path: "/dashboard/teacher/quizzes", Label: "Quizzes", Icon: "help-circle", Description: "Create and grade quizzes"},
				{Path: "/dashboard/teacher/prizes", Label: "Prizes", Icon: "gift", Description: "Award points to students"},
				{Path: ProfilePath, Label: "Profile", Icon: "user", Description: "Your personal information"},
			},
		},
		user.RoleGuardian: {
			label:   "Guardian",
			landing: "/dashboard/guardian",
			items: []Item{
				{Path: "/dashboard/guardian", Label: "Overview", Icon: "home", Description: "Your children at a glance"},
				{Path: "/dashboard/guardian/children", Label: "Children", Icon: "users", Description: "Students under your care"},
				{Path: "/dashboard/guardian/grades", Label: "Grades", Icon: "award", Description: "Published marks"},
				{Path: "/dashboard/guardian/attendance", Label: "Attendance", Icon: "calendar-check", Description: "Absences and late arrivals"},
				{Path: ProfilePath, Label: "Profile", Icon: "user", Description: "Your personal information"},
			},
		},
		user.RoleStudent: {
			label:   "Student",
			landing: "/dashboard/student",
			items: []Item{
				{Path: "/dashboard/student", Label: "Overview", Icon: "home", Description: "Work due soon"},
				{Path: "/dashboard/student/grades", Label: "Grades", Icon: "award", Description: "Your marks"},
				{Path: "/dashboard/student/attendance", Label: "Attendance", Icon: "calendar-check", Description: "Your attendance record"},
				{Path: "/dashboard/student/quizzes", Label: "Quizzes", Icon: "help-circle", Description: "Tutorials and assignments"},
				{Path: "/dashboard/student/prizes", Label: "Prizes", Icon: "gift", Description: "Your points and prizes"},
				{Path: ProfilePath, Label: "Profile", Icon: "user", Description: "Your personal information"},
			},
		},
	}
)

func lookup(role user.Role) entry {
	if e, ok := table[role]; ok {
		return e
	}
	return fallback
}

// Items returns the ordered destinations available to role.
// Unknown roles get a minimal menu. The returned slice is a copy.
func Items(role user.Role) []Item {
	items := lookup(role).items
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// LandingPath returns the default screen for role.
func LandingPath(role user.Role) string {
	return lookup(role).landing
}

// Label returns a human readable role name.
func Label(role user.Role) string {
	return lookup(role).label
}
