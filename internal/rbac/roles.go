package rbac

import "fmt"

// Role is a closed set. Session role claims are parsed through ParseRole once
// at the auth boundary; everything past that point works with Role values,
// never raw strings.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string { return string(r) }

// RolePermissions is the single policy table.
var RolePermissions = map[Role][]string{
	RoleStudent: {
		"course:view",
		"course:enroll",
		"material:view",
		"quiz:view",
		"attempt:create",
		"attempt:save",
		"attempt:submit",
		"attempt:view-own",
		"result:view-own",
		"user:change_password",
	},
	RoleTeacher: {
		"course:*",
		"lesson:*",
		"material:*",
		"quiz:*",
		"question:*",
		"attempt:view-all",
		"grading:*",
		"result:view-all",
		"user:change_password",
	},
	RoleAdmin: {
		"*", // everything
	},
}
