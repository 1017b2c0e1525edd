package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/user"
)

type addUserOptions struct {
	name     string
	email    string
	role     string
	state    string
	district string
	village  string
	agency   string
}

func (cli *commandLine) addUserCmd() *cobra.Command {
	var opts addUserOptions
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the role, jurisdiction and password of an existing one",
		Long: `Create a user, or update the role, jurisdiction and password of an existing one.
The password is prompted.

Examples:
  admin adduser --name "Asha Das" --email asha@pmajay.gov.in --role super_admin
  admin adduser --name "Cuttack Collector" --email dc@cuttack.gov.in --role district_collector --state Odisha --district Cuttack`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			return cli.addUser(cmd.Context(), opts, pwd)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "full name")
	cmd.Flags().StringVar(&opts.email, "email", "", "login email")
	cmd.Flags().StringVar(&opts.role, "role", "", "role (see `admin roles`)")
	cmd.Flags().StringVar(&opts.state, "state", "", "jurisdiction state")
	cmd.Flags().StringVar(&opts.district, "district", "", "jurisdiction district")
	cmd.Flags().StringVar(&opts.village, "village", "", "jurisdiction village")
	cmd.Flags().StringVar(&opts.agency, "agency", "", "implementing agency (contractors)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, opts addUserOptions, pwd string) error {
	nu := user.NewUser{
		Name:            opts.name,
		Email:           opts.email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Role:            opts.role,
		Jurisdiction:    core.Location{State: opts.state, District: opts.district, Village: opts.village},
		Agency:          opts.agency,
	}

	usr, err := cli.usrSvc.GetByEmail(ctx, opts.email)
	switch {
	case core.IsNotFound(err):
		if err := nu.Validate(cli.validate, cli.usrSvc); err != nil {
			return cli.describe(err)
		}
		if usr, err = cli.usrSvc.Create(ctx, nu); err != nil {
			return errors.Wrap(err, "creating user")
		}
		cli.printf("%s%s (%s)\n", created, usr.Email, usr.Role)
		return nil
	case err != nil:
		return errors.Wrap(err, "finding user")
	}

	// existing account: validate as if it were new, ignoring its own email
	if nu.Name == "" {
		nu.Name = usr.Name
	}
	if err := nu.Validate(cli.validate, excludeSelf{cli.usrSvc, usr.ID}); err != nil {
		return cli.describe(err)
	}
	usr.Name = nu.Name
	usr.Role = nu.Role
	usr.Jurisdiction = nu.Jurisdiction
	usr.Agency = nu.Agency
	usr.SetActive(true)
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	if usr, err = cli.users.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	cli.printf("%s%s (%s)\n", updated, usr.Email, usr.Role)
	return nil
}

// excludeSelf checks the email uniqueness against every user but the one being updated.
type excludeSelf struct {
	user.ServiceInterface
	id string
}

func (es excludeSelf) CheckEmailUniqueness(email string, excludedIDs ...string) error {
	return es.ServiceInterface.CheckEmailUniqueness(email, append(excludedIDs, es.id)...)
}
