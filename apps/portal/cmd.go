package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/masomo-portal/apps/portal/tui"
	"github.com/trezcool/masomo-portal/client"
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	runWizardFunc    = tui.Run           // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf *core.Config
	log  core.Logger
	sess *session.Session
	api  *client.Client
	out  io.Writer
}

func newCommandLine(conf *core.Config, log core.Logger, sess *session.Session, api *client.Client, out io.Writer) *commandLine {
	return &commandLine{conf: conf, log: log, sess: sess, api: api, out: out}
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -username USERNAME|EMAIL            - log in (the password is prompted next)")
	fmt.Fprintln(cli.out, "  logout                                    - log out")
	fmt.Fprintln(cli.out, "  whoami                                    - show the logged in user")
	fmt.Fprintln(cli.out, "  projects [-all] [-status S] [-search Q]   - list your projects (-all: every project, approvers)")
	fmt.Fprintln(cli.out, "  project -id ID                            - show a project")
	fmt.Fprintln(cli.out, "  approve -id ID                            - approve the next stage of a project")
	fmt.Fprintln(cli.out, "  reject -id ID [-reason R]                 - reject a project")
	fmt.Fprintln(cli.out, "  submit                                    - submit a new project")
	fmt.Fprintln(cli.out, "  contents                                  - list learning contents")
	fmt.Fprintln(cli.out, "  enroll -id ID                             - enroll in a content")
	fmt.Fprintln(cli.out, "  report                                    - show the project and enrollment reports")
	fmt.Fprintln(cli.out, "  adduser -username U -email E [-name N] [-role R ...] - create a user (admins)")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// parse parses args; a -h/-help request is reported as errHelp.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) readPassword(prompt string) (string, error) {
	fmt.Fprint(cli.out, prompt)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	loginCmd := cli.newFlagSet("login")
	loginUname := loginCmd.String("username", "", "Your username or email. The password will be prompted next.")

	projectsCmd := cli.newFlagSet("projects")
	projectsAll := projectsCmd.Bool("all", false, "List every project (approvers and admins).")
	projectsStatus := projectsCmd.String("status", "", "Only list projects with this status (awaiting_first, awaiting_second, awaiting_third, approved, rejected).")
	projectsSearch := projectsCmd.String("search", "", "Only list projects whose name contains this keyword.")

	projectCmd := cli.newFlagSet("project")
	projectID := projectCmd.String("id", "", "The project ID.")

	approveCmd := cli.newFlagSet("approve")
	approveID := approveCmd.String("id", "", "The project ID.")

	rejectCmd := cli.newFlagSet("reject")
	rejectID := rejectCmd.String("id", "", "The project ID.")
	rejectReason := rejectCmd.String("reason", "", "Why the project is rejected.")

	enrollCmd := cli.newFlagSet("enroll")
	enrollID := enrollCmd.String("id", "", "The content ID.")

	addUserCmd := cli.newFlagSet("adduser")
	addUserUname := addUserCmd.String("username", "", "The username of the new user.")
	addUserEmail := addUserCmd.String("email", "", "The email of the new user.")
	addUserName := addUserCmd.String("name", "", "The full name of the new user (defaults to the username).")
	var addUserRoles rolesFlag
	addUserCmd.Var(&addUserRoles, "role", "A role of the new user (repeatable). Defaults to learner.")

	switch args[1] {
	case "login":
		if err := parse(loginCmd, args[2:]); err != nil {
			return err
		}
		if *loginUname == "" {
			loginCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(ctx, *loginUname, pwd)
	case "logout":
		return cli.logout(ctx)
	case "whoami":
		return cli.whoami()
	case "projects":
		if err := parse(projectsCmd, args[2:]); err != nil {
			return err
		}
		return cli.listProjects(ctx, *projectsAll, *projectsStatus, *projectsSearch)
	case "project":
		if err := parse(projectCmd, args[2:]); err != nil {
			return err
		}
		if *projectID == "" {
			projectCmd.Usage()
			return errHelp
		}
		return cli.showProject(ctx, *projectID)
	case "approve":
		if err := parse(approveCmd, args[2:]); err != nil {
			return err
		}
		if *approveID == "" {
			approveCmd.Usage()
			return errHelp
		}
		return cli.approve(ctx, *approveID)
	case "reject":
		if err := parse(rejectCmd, args[2:]); err != nil {
			return err
		}
		if *rejectID == "" {
			rejectCmd.Usage()
			return errHelp
		}
		return cli.reject(ctx, *rejectID, *rejectReason)
	case "submit":
		return cli.submit(ctx)
	case "contents":
		return cli.listContents(ctx)
	case "enroll":
		if err := parse(enrollCmd, args[2:]); err != nil {
			return err
		}
		if *enrollID == "" {
			enrollCmd.Usage()
			return errHelp
		}
		return cli.enroll(ctx, *enrollID)
	case "report":
		return cli.report(ctx)
	case "adduser":
		if err := parse(addUserCmd, args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		confirm, err := cli.readPassword("Confirm password:")
		if err != nil {
			return err
		}
		return cli.addUser(ctx, *addUserName, *addUserUname, *addUserEmail, pwd, confirm, addUserRoles)
	default:
		cli.printUsage()
		return errHelp
	}
}

// rolesFlag collects repeated -role flags.
type rolesFlag []string

func (rf *rolesFlag) String() string { return fmt.Sprint([]string(*rf)) }

func (rf *rolesFlag) Set(v string) error {
	*rf = append(*rf, core.CleanString(v, true /* lower */))
	return nil
}
