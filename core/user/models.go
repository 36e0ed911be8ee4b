package user

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/masomo-portal/core"
)

// Roles
const (
	// Admin
	RoleAdmin = "admin:"

	// Approver
	RoleApprover       = "approver:"
	RoleApproverFirst  = "approver:first"
	RoleApproverSecond = "approver:second"
	RoleApproverThird  = "approver:third"

	// Learner
	RoleLearner = "learner:"
)

var (
	AdminRoles    = []string{RoleAdmin}
	ApproverRoles = []string{RoleApprover, RoleApproverFirst, RoleApproverSecond, RoleApproverThird}
	LearnerRoles  = []string{RoleLearner}
	AllRoles      = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdmin: 30,

		// Approvers: 20 - 11
		RoleApprover:       14,
		RoleApproverThird:  13,
		RoleApproverSecond: 12,
		RoleApproverFirst:  11,

		// Learners: 10 - 1
		RoleLearner: 1,
	}

	approverStages = map[string]int{
		RoleApproverFirst:  1,
		RoleApproverSecond: 2,
		RoleApproverThird:  3,
	}

	Roles = []Role{
		{Name: "Learner", Value: RoleLearner},
		{Name: "Approver (first stage)", Value: RoleApproverFirst},
		{Name: "Approver (second stage)", Value: RoleApproverSecond},
		{Name: "Approver (third stage)", Value: RoleApproverThird},
		{Name: "Approver (any stage)", Value: RoleApprover},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 6)
	all = append(all, AdminRoles...)
	all = append(all, ApproverRoles...)
	all = append(all, LearnerRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	IsActive     bool      `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-" yaml:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsApprover() bool {
	return u.RoleStartsWith(RoleApprover)
}

func (u *User) IsLearner() bool {
	return u.RoleStartsWith(RoleLearner)
}

// CanApproveStage reports whether the user may record the approval of the given stage (1-3).
func (u *User) CanApproveStage(stage int) bool {
	if u.IsAdmin() {
		return true
	}
	for _, role := range u.Roles {
		if role == RoleApprover {
			return true
		}
		if s, ok := approverStages[role]; ok && s == stage {
			return true
		}
	}
	return false
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Username        string   `json:"username" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
}

func (nu *NewUser) Validate() error {
	nu.Clean()
	return core.Validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name            string   `json:"name,omitempty"`
	Username        string   `json:"username,omitempty" validate:"omitempty,min=6,alphanum_"`
	Email           string   `json:"email,omitempty" validate:"omitempty,email"`
	IsActive        *bool    `json:"is_active,omitempty"`
	Roles           []string `json:"roles,omitempty" validate:"omitempty,allroles"`
	Password        string   `json:"password,omitempty" validate:"omitempty"`
	PasswordConfirm string   `json:"password_confirm,omitempty" validate:"required_with=Password,eqfield=Password"`
}

// Validate cleans uu, falls back to origUsr for blank identity fields and validates.
func (uu *UpdateUser) Validate(origUsr User) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if uname := core.CleanString(uu.Username, true /* lower */); uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	return core.Validate.Struct(uu)
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	IsActive *bool    `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
