package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/apps/portal/tui"
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/project"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/user"
	"github.com/trezcool/masomo-portal/core/wizard"
)

var (
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD93D"))
	approvedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6BCB77"))
	rejectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

func statusText(s project.Status) string {
	switch {
	case s.Pending():
		return pendingStyle.Render(s.String())
	case s.Kind == project.FullyApproved:
		return approvedStyle.Render(s.String())
	default:
		return rejectedStyle.Render(s.String())
	}
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

func (cli *commandLine) requireLogin() error {
	if cli.sess.Expired() {
		return session.ErrSessionExpired
	}
	if !cli.sess.Authenticated() {
		return session.ErrNotAuthenticated
	}
	return nil
}

func (cli *commandLine) login(ctx context.Context, username, password string) error {
	usr, err := cli.sess.Login(ctx, username, password)
	if err != nil {
		if core.IsCode(err, core.CodeUnauthorized) || core.IsCode(err, core.CodeValidation) {
			return errors.New("invalid credentials")
		}
		return err
	}
	fmt.Fprintf(cli.out, "Logged in as %s (%s).\n", usr.Name, usr.Username)
	return nil
}

func (cli *commandLine) logout(ctx context.Context) error {
	if !cli.sess.Authenticated() {
		fmt.Fprintln(cli.out, "Not logged in.")
		return nil
	}
	if err := cli.sess.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Logged out.")
	return nil
}

func (cli *commandLine) whoami() error {
	if err := cli.requireLogin(); err != nil {
		return err
	}
	usr, _ := cli.sess.User()
	fmt.Fprintf(cli.out, "%s (%s)\n", usr.Name, usr.Username)
	if usr.Email != "" {
		fmt.Fprintf(cli.out, "email: %s\n", usr.Email)
	}
	fmt.Fprintf(cli.out, "roles: %s\n", strings.Join(usr.Roles, ", "))
	return nil
}

func (cli *commandLine) listProjects(ctx context.Context, all bool, status, search string) error {
	if err := cli.requireLogin(); err != nil {
		return err
	}
	filter := project.QueryFilter{Status: status, Search: search}
	filter.Clean()

	var projects []project.Project
	var err error
	if all {
		projects, err = cli.api.ListProjects(ctx, filter)
	} else {
		var own []project.Project
		if own, err = cli.api.ListOwnProjects(ctx); err == nil {
			for _, p := range own {
				if filter.Matches(p) {
					projects = append(projects, p)
				}
			}
		}
	}
	if err != nil {
		return err
	}

	if len(projects) == 0 {
		fmt.Fprintln(cli.out, "No projects.")
		return nil
	}
	tw := newTable(cli.out)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSUBMITTED")
	for _, p := range projects {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.EnglishName, statusText(p.Status()), p.SubmittedAt.Format(core.DateLayout))
	}
	return tw.Flush()
}

func (cli *commandLine) showProject(ctx context.Context, id string) error {
	if err := cli.requireLogin(); err != nil {
		return err
	}
	p, err := cli.api.GetProject(ctx, id)
	if err != nil {
		return err
	}
	cli.printProject(p)
	return nil
}

func (cli *commandLine) printProject(p project.Project) {
	tw := newTable(cli.out)
	fmt.Fprintf(tw, "ID\t%s\n", p.ID)
	fmt.Fprintf(tw, "Thai name\t%s\n", p.ThaiName)
	fmt.Fprintf(tw, "English name\t%s\n", p.EnglishName)
	fmt.Fprintf(tw, "Summary\t%s\n", p.Summary)
	fmt.Fprintf(tw, "Period\t%s to %s\n", p.StartDate, p.EndDate)
	fmt.Fprintf(tw, "SDG\t%s\n", project.Label(project.SDGTypes, p.SDGType))
	fmt.Fprintf(tw, "Type\t%s\n", project.Label(project.ProjectTypes, p.ProjectType))
	if p.IsContinuation {
		fmt.Fprintf(tw, "Continues\t%s\n", p.ParentProjectID)
	}
	fmt.Fprintf(tw, "Submitter\t%s <%s>\n", p.Submitter.FullName(), p.Submitter.Email)
	fmt.Fprintf(tw, "Status\t%s\n", statusText(p.Status()))
	if p.RejectionReason != "" {
		fmt.Fprintf(tw, "Reason\t%s\n", p.RejectionReason)
	}
	_ = tw.Flush()
}

func (cli *commandLine) approve(ctx context.Context, id string) error {
	if err := cli.requireLogin(); err != nil {
		return err
	}
	p, err := cli.api.UpdateProjectStatus(ctx, id, project.ActionApprove, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Project %s is now %s.\n", p.ID, statusText(p.Status()))
	return nil
}

func (cli *commandLine) reject(ctx context.Context, id, reason string) error {
	if err := cli.requireLogin(); err != nil {
		return err
	}
	p, err := cli.api.UpdateProjectStatus(ctx, id, project.ActionReject, reason)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Project %s is now %s.\n", p.ID, statusText(p.Status()))
	return nil
}

func (cli *commandLine) submit(ctx context.Context) error {
	if err := cli.requireLogin(); err != nil {
		return err
	}

	wz := wizard.New(cli.api, wizard.WithLogger(cli.log), wizard.WithMaxFileSize(cli.conf.Upload.MaxFileSize))
	if err := wz.Begin(ctx); err != nil {
		if pErr, ok := wizard.IsPending(err); ok {
			cli.printPending(pErr)
			return nil
		}
		return err
	}

	cli.sess.StartRefresher(ctx, cli.conf.API.RefreshInterval)
	defer cli.sess.StopRefresher()

	p, err := runWizardFunc(ctx, wz, tui.Options{Expired: cli.sess.Expired, Output: cli.out})
	if err != nil {
		if pErr, ok := wizard.IsPending(err); ok {
			cli.printPending(pErr)
			return nil
		}
		if errors.Cause(err) == tui.ErrCancelled {
			fmt.Fprintln(cli.out, "Submission cancelled.")
			return nil
		}
		return err
	}
	fmt.Fprintf(cli.out, "Project %s submitted, %s.\n", p.ID, statusText(p.Status()))
	return nil
}

func (cli *commandLine) printPending(err *wizard.PendingProjectError) {
	fmt.Fprintln(cli.out, "A new project can be submitted once your latest project is decided.")
	if err.Project != nil {
		cli.printProject(*err.Project)
		return
	}
	fmt.Fprintf(cli.out, "Pending project: %s\n", err.ProjectID)
}

func (cli *commandLine) listContents(ctx context.Context) error {
	if err := cli.requireLogin(); err != nil {
		return err
	}
	contents, err := cli.api.ListContents(ctx)
	if err != nil {
		return err
	}
	enrolled := make(map[string]bool)
	if enrollments, err := cli.api.ListEnrollments(ctx); err == nil {
		for _, e := range enrollments {
			enrolled[e.ContentID] = true
		}
	} else if !core.IsCode(err, core.CodeForbidden) {
		return err
	}

	if len(contents) == 0 {
		fmt.Fprintln(cli.out, "No contents.")
		return nil
	}
	tw := newTable(cli.out)
	fmt.Fprintln(tw, "ID\tTITLE\tENROLLED\tDESCRIPTION")
	for _, c := range contents {
		mark := ""
		if enrolled[c.ID] {
			mark = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Title, mark, c.Description)
	}
	return tw.Flush()
}

func (cli *commandLine) enroll(ctx context.Context, id string) error {
	if err := cli.requireLogin(); err != nil {
		return err
	}
	e, err := cli.api.Enroll(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Enrolled in %s on %s.\n", e.ContentID, e.EnrolledAt.Format(core.DateLayout))
	return nil
}

func (cli *commandLine) report(ctx context.Context) error {
	if err := cli.requireLogin(); err != nil {
		return err
	}
	sum, err := cli.api.ProjectSummary(ctx)
	if err != nil {
		return err
	}
	tw := newTable(cli.out)
	fmt.Fprintf(tw, "PROJECTS\t%d\n", sum.Total)
	for _, code := range project.StatusCodes {
		fmt.Fprintf(tw, "  %s\t%d\n", code, sum.ByStatus[code])
	}
	for _, opt := range project.SDGTypes {
		if n := sum.BySDG[opt.Value]; n > 0 {
			fmt.Fprintf(tw, "  %s\t%d\n", opt.Label, n)
		}
	}

	if usr, _ := cli.sess.User(); usr.IsAdmin() {
		esum, err := cli.api.EnrollmentSummary(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "ENROLLMENTS\t%d\n", esum.Total)
		for _, c := range esum.Contents {
			fmt.Fprintf(tw, "  %s\t%d\n", c.Title, c.Learners)
		}
	}
	return tw.Flush()
}

func (cli *commandLine) addUser(ctx context.Context, name, uname, email, pwd, confirm string, roles []string) error {
	if err := cli.requireLogin(); err != nil {
		return err
	}
	if name == "" {
		name = uname
	}
	if len(roles) == 0 {
		roles = user.LearnerRoles
	}
	usr, err := cli.api.CreateUser(ctx, user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: confirm,
		Roles:           roles,
	})
	if err != nil {
		if fe, ok := core.FieldErrorsOf(err); ok {
			for _, f := range fe.Keys() {
				fmt.Fprintf(cli.out, "%s: %s\n", f, fe[f])
			}
		}
		return err
	}
	fmt.Fprintf(cli.out, "User %s (%s) created.\n", usr.Username, usr.ID)
	return nil
}
