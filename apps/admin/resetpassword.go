package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/pmajay/core/user"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			return cli.resetPassword(cmd.Context(), email, pwd)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "the user's email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	uu := user.UpdateUser{Password: pwd, PasswordConfirm: pwd}
	if err := uu.Validate(usr, cli.validate, cli.usrSvc); err != nil {
		return cli.describe(err)
	}
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	if _, err := cli.users.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}
	cli.printf("%s%s\n", updated, usr.Email)
	return nil
}
