package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/pmajay/core"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("user")
	ErrEmailExists = errors.New("a user with this email already exists")

	errRolePriority    = "not enough rights to set this role"
	errCannotEditOther = "you can only update your own name, phone and password"
)

type (
	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists if another user (not in excludedIDs) uses email.
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]User, int, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetLastLogin(ctx context.Context, id string, at time.Time) error
		DeleteUser(ctx context.Context, id string) error
	}

	ServiceInterface interface {
		CheckEmailUniqueness(email string, excludedIDs ...string) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Provision(ctx context.Context, actor User, nu NewUser) (User, error)
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]User, int, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, actor User, id string, uu UpdateUser) (User, error)
		Delete(ctx context.Context, actor User, id string) error
		SetLastLogin(ctx context.Context, usr User) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
	}

	Service struct {
		repo         Repository
		mailSvc      core.EmailService
		secretKey    string
		resetTimeout time.Duration
		logger       core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		repo:         repo,
		mailSvc:      mailSvc,
		secretKey:    conf.SecretKey,
		resetTimeout: conf.PasswordResetTimeoutDelta,
		logger:       logger,
	}
}

func (svc *Service) CheckEmailUniqueness(email string, excludedIDs ...string) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, excludedIDs...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Create registers a user from validated data.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:               uuid.New().String(),
		Name:             nu.Name,
		Email:            nu.Email,
		Role:             nu.Role,
		Jurisdiction:     nu.Jurisdiction,
		Department:       nu.Department,
		Agency:           nu.Agency,
		Phone:            nu.Phone,
		ExtraPermissions: nu.ExtraPermissions,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Provision creates a user on behalf of actor, who needs `manage_users` and cannot assign a role above their own.
func (svc *Service) Provision(ctx context.Context, actor User, nu NewUser) (User, error) {
	if !actor.HasPermission(PermManageUsers) {
		return User{}, core.NewForbiddenError("permission denied")
	}
	if RolePriority(nu.Role) > RolePriority(actor.Role) {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: errRolePriority})
	}
	return svc.Create(ctx, nu)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, page core.Pagination) ([]User, int, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering, page)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// Update applies uu to the user `id`.
// A user may change their own name, phone and password; anything else needs `manage_users`,
// and nobody can assign a role above their own.
func (svc *Service) Update(ctx context.Context, actor User, id string, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}

	isSelf := actor.ID == usr.ID
	canManage := actor.HasPermission(PermManageUsers)
	switch {
	case canManage:
		if usr.IsSuperAdmin() && !actor.IsSuperAdmin() {
			return User{}, core.NewForbiddenError("only a super admin can modify a super admin")
		}
		if RolePriority(usr.Role) > RolePriority(actor.Role) {
			return User{}, core.NewForbiddenError("permission denied")
		}
	case isSelf:
		if !uu.OnlySelfServiceFields() {
			return User{}, core.NewForbiddenError(errCannotEditOther)
		}
	default:
		return User{}, core.NewForbiddenError("permission denied")
	}
	if uu.Role != nil && RolePriority(*uu.Role) > RolePriority(actor.Role) {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: errRolePriority})
	}

	updated := uu.apply(usr)
	if uu.Password != "" {
		if err := updated.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	updated.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, updated)
}

// Delete removes the user `id`. Nobody deletes themselves; super admins are only deleted by super admins.
func (svc *Service) Delete(ctx context.Context, actor User, id string) error {
	if !actor.HasPermission(PermManageUsers) {
		return core.NewForbiddenError("permission denied")
	}
	if actor.ID == id {
		return core.NewForbiddenError("you cannot delete your own account")
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return err
	}
	if usr.IsSuperAdmin() && !actor.IsSuperAdmin() {
		return core.NewForbiddenError("only a super admin can delete a super admin")
	}
	if RolePriority(usr.Role) > RolePriority(actor.Role) {
		return core.NewForbiddenError("permission denied")
	}
	return svc.repo.DeleteUser(ctx, id)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, err
	}
	usr.LastLogin = &now
	return usr, nil
}

// RequestPasswordReset mails a reset link to the active user owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.Active() {
		return ErrNotFound
	}
	token, err := MakeToken(usr, svc.secretKey)
	if err != nil {
		return errors.Wrap(err, "making reset token")
	}

	days := int(svc.resetTimeout / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password reset",
		Kind:         core.EmailPasswordReset,
		TemplateData: map[string]interface{}{
			"Name":      usr.Name,
			"UID":       EncodeUID(usr),
			"Token":     token,
			"ValidDays": days,
		},
	})
	return nil
}

// ResetPassword sets the new password if the uid/token pair was issued by RequestPasswordReset.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalid := core.NewValidationError(nil, core.FieldError{Field: "token", Error: "invalid or expired token"})

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalid
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return invalid
		}
		return err
	}
	if err := verifyToken(usr, data.Token, svc.secretKey, svc.resetTimeout); err != nil {
		if err == errInvalidToken || err == errTokenExpired {
			return invalid
		}
		return errors.Wrap(err, "verifying token")
	}

	if err := usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}
