package main

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/pmajay/core"
	"github.com/trezcool/pmajay/core/milestone"
	"github.com/trezcool/pmajay/core/project"
	"github.com/trezcool/pmajay/core/user"
)

type (
	seedFile struct {
		Users    []seedUser    `yaml:"users"`
		Projects []seedProject `yaml:"projects"`
	}

	seedLocation struct {
		State    string `yaml:"state"`
		District string `yaml:"district"`
		Village  string `yaml:"village"`
	}

	seedUser struct {
		Name         string       `yaml:"name"`
		Email        string       `yaml:"email"`
		Password     string       `yaml:"password"`
		Role         string       `yaml:"role"`
		Jurisdiction seedLocation `yaml:"jurisdiction"`
		Agency       string       `yaml:"agency"`
	}

	seedMilestone struct {
		MilestoneID     string    `yaml:"milestone_id"`
		Title           string    `yaml:"title"`
		Category        string    `yaml:"category"`
		ScheduledDate   time.Time `yaml:"scheduled_date"`
		AllocatedAmount float64   `yaml:"allocated_amount"`
	}

	seedProject struct {
		ProjectID          string          `yaml:"project_id"`
		Name               string          `yaml:"name"`
		SchemeType         string          `yaml:"scheme_type"`
		Location           seedLocation    `yaml:"location"`
		ImplementingAgency string          `yaml:"implementing_agency"`
		EstimatedCost      float64         `yaml:"estimated_cost"`
		SanctionedAmount   float64         `yaml:"sanctioned_amount"`
		StartDate          time.Time       `yaml:"start_date"`
		ScheduledEndDate   time.Time       `yaml:"scheduled_end_date"`
		Priority           string          `yaml:"priority"`
		CreatedBy          string          `yaml:"created_by"` // email of a seeded user
		Milestones         []seedMilestone `yaml:"milestones"`
	}
)

func (l seedLocation) location() core.Location {
	return core.Location{State: l.State, District: l.District, Village: l.Village}
}

func (cli *commandLine) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Load users, projects and milestones from a YAML file",
		Long: `Load users, projects and milestones from a YAML file.
Records that already exist (same email, project_id or milestone_id) are skipped, so seeding twice is harmless.
Projects are created on behalf of their created_by user and must be within that user's jurisdiction.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "reading seed file")
			}
			var sf seedFile
			if err := yaml.Unmarshal(data, &sf); err != nil {
				return errors.Wrap(err, "parsing seed file")
			}
			return cli.seed(cmd.Context(), sf)
		},
	}
}

func (cli *commandLine) seed(ctx context.Context, sf seedFile) error {
	for _, su := range sf.Users {
		if err := cli.seedUser(ctx, su); err != nil {
			return errors.Wrapf(err, "seeding user %s", su.Email)
		}
	}
	for _, sp := range sf.Projects {
		if err := cli.seedProject(ctx, sp); err != nil {
			return errors.Wrapf(err, "seeding project %s", sp.ProjectID)
		}
	}
	return nil
}

func (cli *commandLine) seedUser(ctx context.Context, su seedUser) error {
	if _, err := cli.usrSvc.GetByEmail(ctx, su.Email); err == nil {
		cli.printf("%suser %s\n", exists, su.Email)
		return nil
	} else if !core.IsNotFound(err) {
		return err
	}

	nu := user.NewUser{
		Name:            su.Name,
		Email:           su.Email,
		Password:        su.Password,
		PasswordConfirm: su.Password,
		Role:            su.Role,
		Jurisdiction:    su.Jurisdiction.location(),
		Agency:          su.Agency,
	}
	if err := nu.Validate(cli.validate, cli.usrSvc); err != nil {
		return cli.describe(err)
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	cli.printf("%suser %s (%s)\n", created, usr.Email, usr.Role)
	return nil
}

func (cli *commandLine) seedProject(ctx context.Context, sp seedProject) error {
	creator, err := cli.usrSvc.GetByEmail(ctx, sp.CreatedBy)
	if err != nil {
		return errors.Wrapf(err, "finding creator %q", sp.CreatedBy)
	}

	np := project.NewProject{
		ProjectID:          sp.ProjectID,
		Name:               sp.Name,
		SchemeType:         sp.SchemeType,
		Location:           project.Location{Location: sp.Location.location()},
		ImplementingAgency: sp.ImplementingAgency,
		EstimatedCost:      sp.EstimatedCost,
		SanctionedAmount:   sp.SanctionedAmount,
		StartDate:          sp.StartDate,
		ScheduledEndDate:   sp.ScheduledEndDate,
		Priority:           sp.Priority,
	}
	if err := np.Validate(cli.validate); err != nil {
		return cli.describe(err)
	}

	p, err := cli.projectSvc.Create(ctx, creator, np)
	switch {
	case core.IsConflict(err):
		cli.printf("%sproject %s\n", exists, sp.ProjectID)
		if p, err = cli.findProject(ctx, creator, sp.ProjectID); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		cli.printf("%sproject %s\n", created, p.ProjectID)
	}

	for _, sm := range sp.Milestones {
		nm := milestone.NewMilestone{
			MilestoneID:     sm.MilestoneID,
			ProjectID:       p.ID,
			Title:           sm.Title,
			Category:        sm.Category,
			ScheduledDate:   sm.ScheduledDate,
			AllocatedAmount: sm.AllocatedAmount,
		}
		if err := nm.Validate(cli.validate); err != nil {
			return errors.Wrapf(cli.describe(err), "milestone %s", sm.MilestoneID)
		}
		m, err := cli.milestoneSvc.Create(ctx, creator, nm)
		switch {
		case core.IsConflict(err):
			cli.printf("%smilestone %s\n", exists, sm.MilestoneID)
		case err != nil:
			return errors.Wrapf(err, "milestone %s", sm.MilestoneID)
		default:
			cli.printf("%smilestone %s\n", created, m.MilestoneID)
		}
	}
	return nil
}

// findProject looks up a project by its human readable project_id.
func (cli *commandLine) findProject(ctx context.Context, actor user.User, projectID string) (project.Project, error) {
	projects, _, err := cli.projectSvc.Query(ctx, actor, project.QueryFilter{Search: projectID}, nil, core.Pagination{})
	if err != nil {
		return project.Project{}, err
	}
	for _, p := range projects {
		if p.ProjectID == projectID {
			return p, nil
		}
	}
	return project.Project{}, core.NewNotFoundError("project")
}
