package user

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/pmajay/core"
)

type User struct {
	ID               string        `json:"id" bson:"_id"`
	Name             string        `json:"name" bson:"name"`
	Email            string        `json:"email" bson:"email"`
	Role             string        `json:"role" bson:"role"`
	Jurisdiction     core.Location `json:"jurisdiction" bson:"jurisdiction"`
	Department       string        `json:"department,omitempty" bson:"department,omitempty"`
	Agency           string        `json:"agency,omitempty" bson:"agency,omitempty"`
	Phone            string        `json:"phone,omitempty" bson:"phone,omitempty"`
	ExtraPermissions []string      `json:"extra_permissions,omitempty" bson:"extra_permissions,omitempty"`
	IsActive         *bool         `json:"is_active" bson:"is_active"`
	PasswordHash     []byte        `json:"-" bson:"password_hash"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at"` // UTC
	UpdatedAt        time.Time     `json:"updated_at" bson:"updated_at"` // UTC
	LastLogin        *time.Time    `json:"last_login" bson:"last_login,omitempty"`
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

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

func (u User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

// Permissions returns the role permissions plus the extra grants, sorted.
func (u User) Permissions() []string {
	seen := make(map[string]struct{})
	perms := make([]string, 0)
	ri, _ := LookupRole(u.Role)
	for _, p := range append(ri.Permissions, u.ExtraPermissions...) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			perms = append(perms, p)
		}
	}
	sort.Strings(perms)
	return perms
}

func (u User) HasPermission(perm string) bool {
	return RoleHasPermission(u.Role, perm) || core.ContainsString(u.ExtraPermissions, perm)
}

func (u User) DashboardRoute() string {
	if ri, ok := LookupRole(u.Role); ok {
		return ri.DashboardRoute
	}
	return "/dashboard"
}

func (u User) IsSuperAdmin() bool { return u.Role == RoleSuperAdmin }

func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	return json.Marshal(struct {
		plain
		Permissions    []string `json:"permissions"`
		DashboardRoute string   `json:"dashboard_route"`
	}{
		plain:          plain(u),
		Permissions:    u.Permissions(),
		DashboardRoute: u.DashboardRoute(),
	})
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name             string        `json:"name" validate:"required"`
	Email            string        `json:"email" validate:"required,email"`
	Password         string        `json:"password" validate:"required"`
	PasswordConfirm  string        `json:"password_confirm" validate:"required,eqfield=Password"`
	Role             string        `json:"role" validate:"required,role"`
	Jurisdiction     core.Location `json:"jurisdiction"`
	Department       string        `json:"department"`
	Agency           string        `json:"agency"`
	Phone            string        `json:"phone" validate:"omitempty,phone"`
	ExtraPermissions []string      `json:"extra_permissions" validate:"omitempty,dive,permission"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc ServiceInterface) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	nu.Jurisdiction = nu.Jurisdiction.Clean()
	nu.Department = core.CleanString(nu.Department)
	nu.Agency = core.CleanString(nu.Agency)
	nu.Phone = core.CleanString(nu.Phone)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name             *string        `json:"name"`
	Email            *string        `json:"email" validate:"omitempty,email"`
	Role             *string        `json:"role" validate:"omitempty,role"`
	Jurisdiction     *core.Location `json:"jurisdiction"`
	Department       *string        `json:"department"`
	Agency           *string        `json:"agency"`
	Phone            *string        `json:"phone" validate:"omitempty,phone"`
	ExtraPermissions []string       `json:"extra_permissions" validate:"omitempty,dive,permission"`
	IsActive         *bool          `json:"is_active"`
	Password         string         `json:"password"`
	PasswordConfirm  string         `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`

	// set by Validate; used by the struct level validation
	orig User
}

// OnlySelfServiceFields reports whether the update only touches fields a user may change on their own account.
func (uu UpdateUser) OnlySelfServiceFields() bool {
	return uu.Email == nil && uu.Role == nil && uu.Jurisdiction == nil && uu.Department == nil &&
		uu.Agency == nil && uu.ExtraPermissions == nil && uu.IsActive == nil
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc ServiceInterface) error {
	uu.orig = origUsr
	if uu.Name != nil {
		name := core.CleanString(*uu.Name)
		uu.Name = &name
	}
	if uu.Email != nil {
		email := core.CleanString(*uu.Email, true /* lower */)
		uu.Email = &email
	}
	if uu.Role != nil {
		role := core.CleanString(*uu.Role, true /* lower */)
		uu.Role = &role
	}
	if uu.Jurisdiction != nil {
		loc := uu.Jurisdiction.Clean()
		uu.Jurisdiction = &loc
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	if uu.Email != nil && *uu.Email != origUsr.Email {
		return svc.CheckEmailUniqueness(*uu.Email, origUsr.ID)
	}
	return nil
}

// apply returns the user with the update applied.
func (uu UpdateUser) apply(usr User) User {
	if uu.Name != nil && *uu.Name != "" {
		usr.Name = *uu.Name
	}
	if uu.Email != nil && *uu.Email != "" {
		usr.Email = *uu.Email
	}
	if uu.Role != nil && *uu.Role != "" {
		usr.Role = *uu.Role
	}
	if uu.Jurisdiction != nil {
		usr.Jurisdiction = *uu.Jurisdiction
	}
	if uu.Department != nil {
		usr.Department = *uu.Department
	}
	if uu.Agency != nil {
		usr.Agency = *uu.Agency
	}
	if uu.Phone != nil {
		usr.Phone = *uu.Phone
	}
	if uu.ExtraPermissions != nil {
		usr.ExtraPermissions = uu.ExtraPermissions
	}
	if uu.IsActive != nil {
		usr.SetActive(*uu.IsActive)
	}
	return usr
}

// ResetUserPassword is submitted with the token received by email.
type ResetUserPassword struct {
	UID             string `json:"uid" validate:"required"`
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	rp.UID = core.CleanString(rp.UID)
	rp.Token = core.CleanString(rp.Token)
	return validate.Struct(rp)
}

type GetFilter struct {
	ID    string
	Email string
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Roles    []string `query:"role"`
	IsActive *bool    `query:"is_active"`
	State    string   `query:"state"`
	District string   `query:"district"`
	Village  string   `query:"village"`
	Agency   string   `query:"agency"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.State = core.CleanString(qf.State)
	qf.District = core.CleanString(qf.District)
	qf.Village = core.CleanString(qf.Village)
	qf.Agency = core.CleanString(qf.Agency)
}

// Matches is used by in-memory repositories.
func (qf QueryFilter) Matches(usr User) bool {
	if qf.Search != "" && !core.ContainsFold(usr.Name, qf.Search) && !core.ContainsFold(usr.Email, qf.Search) {
		return false
	}
	if len(qf.Roles) > 0 && !core.ContainsString(qf.Roles, usr.Role) {
		return false
	}
	if qf.IsActive != nil && *qf.IsActive != usr.Active() {
		return false
	}
	return (qf.State == "" || qf.State == usr.Jurisdiction.State) &&
		(qf.District == "" || qf.District == usr.Jurisdiction.District) &&
		(qf.Village == "" || qf.Village == usr.Jurisdiction.Village) &&
		(qf.Agency == "" || qf.Agency == usr.Agency)
}
