package approval

import (
	"fmt"
	"strings"
)

// Role is a closed set of designations. Free-text designations are resolved
// into a Role once, at the directory boundary.
type Role string

const (
	RoleUnknown            Role = ""
	RoleStudent            Role = "STUDENT"
	RoleTutor              Role = "TUTOR"
	RoleProgramCoordinator Role = "PC"
	RoleHOD                Role = "HOD"
	RoleDean               Role = "DEAN"
	RolePrincipal          Role = "PRINCIPAL"
)

var roleSynonyms = map[string]Role{
	"student":                RoleStudent,
	"tutor":                  RoleTutor,
	"class tutor":            RoleTutor,
	"class advisor":          RoleTutor,
	"class adviser":          RoleTutor,
	"advisor":                RoleTutor,
	"faculty advisor":        RoleTutor,
	"pc":                     RoleProgramCoordinator,
	"program coordinator":    RoleProgramCoordinator,
	"programme coordinator":  RoleProgramCoordinator,
	"hod":                    RoleHOD,
	"head":                   RoleHOD,
	"head of department":     RoleHOD,
	"head of the department": RoleHOD,
	"dean":                   RoleDean,
	"dean academics":         RoleDean,
	"principal":              RolePrincipal,
}

// ParseRole resolves a designation, tolerating case, punctuation and the
// common synonyms staff records carry.
func ParseRole(s string) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(key)
	key = strings.Join(strings.Fields(key), " ")
	if r, ok := roleSynonyms[key]; ok {
		return r, nil
	}
	return RoleUnknown, fmt.Errorf("unknown designation %q", s)
}

// Actor is an authenticated user as resolved by the directory.
type Actor struct {
	ID         string `json:"id" firestore:"-"`
	Name       string `json:"name" firestore:"name"`
	Role       Role   `json:"role" firestore:"role"`
	Class      string `json:"class,omitempty" firestore:"class,omitempty"`
	Department string `json:"department,omitempty" firestore:"department,omitempty"`
	RollNumber string `json:"rollNumber,omitempty" firestore:"rollNumber,omitempty"`
}

// Action is a reviewer's decision on the active stage.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// ParseAction accepts "approve"/"approved" and "reject"/"rejected".
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved":
		return ActionApprove, nil
	case "reject", "rejected":
		return ActionReject, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}
