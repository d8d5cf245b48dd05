package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"syscall"
	"text/tabwriter"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/masomo/portal/core"
	"github.com/trezcool/masomo/portal/core/nav"
	"github.com/trezcool/masomo/portal/core/session"
	"github.com/trezcool/masomo/portal/core/user"
	"github.com/trezcool/masomo/portal/services/backend"
	"github.com/trezcool/masomo/portal/storage/credential"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errNotLoggedIn      = errors.New("not logged in")
	errPasswordRequired = errors.New("password required")
)

type commandLine struct {
	conf       *core.Config
	logger     core.Logger
	store      session.CredentialStore
	resolver   session.Resolver
	api        *backend.Client
	validate   *validator.Validate
	translator ut.Translator
	out        io.Writer
}

func newCommandLine(conf *core.Config, logger core.Logger, out io.Writer) *commandLine {
	translator := core.NewTranslator()
	resolver := session.NewJWTResolver()
	return &commandLine{
		conf:       conf,
		logger:     logger,
		store:      credential.NewFileStore(conf.Session.CredentialsFile, logger),
		resolver:   resolver,
		api:        backend.NewClient(conf, logger, resolver, backend.OnExpired(logoutExpired(logger))),
		validate:   core.NewValidator(translator),
		translator: translator,
		out:        out,
	}
}

// logoutExpired forgets the stored session once the API rejected it.
func logoutExpired(logger core.Logger) func(ctx context.Context) {
	return func(ctx context.Context) {
		if sess, ok := session.FromContext(ctx); ok {
			if err := sess.Logout(); err != nil {
				logger.Warn("clearing expired session", err)
			}
		}
	}
}

// session returns a fresh view of the stored session. Callers resolve it with Init.
func (cli *commandLine) session() *session.Context {
	return session.New(cli.store, cli.resolver, session.WithLogger(cli.logger))
}

func (cli *commandLine) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portalctl",
		Short: "Use the Masomo portal from the command line",
		Long: `portalctl keeps a Masomo session in a local credentials file and shows
what the portal would show for it.

Examples:
  portalctl login -u teacher@school.cd
  portalctl whoami --check
  portalctl nav guardian
  portalctl logout`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(cli.out)

	cmd.AddCommand(
		cli.loginCmd(),
		cli.logoutCmd(),
		cli.whoamiCmd(),
		cli.navCmd(),
	)
	return cmd
}

func (cli *commandLine) loginCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cli.out, "Enter password:")
			pwd, err := readPasswordFunc(int(syscall.Stdin))
			fmt.Fprintln(cli.out)
			if err != nil {
				return errors.Wrap(err, "reading password")
			}
			if len(pwd) == 0 {
				return errPasswordRequired
			}
			return cli.login(cmd.Context(), username, string(pwd))
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username or email; the password is prompted next")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (cli *commandLine) login(ctx context.Context, username, pwd string) error {
	creds := user.Credentials{Username: username, Password: pwd}
	if err := creds.Validate(cli.validate, cli.translator); err != nil {
		return err
	}

	res, err := cli.api.Login(ctx, creds)
	if err != nil {
		return err
	}
	sess := cli.session()
	defer sess.Close()
	if err = sess.Login(res.User, res.Token); err != nil {
		return errors.Wrap(err, "storing session")
	}

	fmt.Fprintf(cli.out, "Logged in as %s (%s)\n", res.User.FullName(), nav.Label(res.User.Role))
	return nil
}

func (cli *commandLine) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := cli.session()
			defer sess.Close()
			if err := sess.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cli.out, "Logged out")
			return nil
		},
	}
}

func (cli *commandLine) whoamiCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the user of the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := cli.session()
			defer sess.Close()

			usr, ok := cli.currentUser(sess)
			if !ok {
				return errNotLoggedIn
			}

			if check {
				token, _ := cli.store.Load()
				// an expired session is logged out by the client's expiry hook
				ctx := session.NewContext(cmd.Context(), sess)
				profile, err := cli.api.Profile(ctx, token, usr.ID)
				if err != nil {
					if errors.Cause(err) == backend.ErrSessionExpired {
						return errors.Wrap(errNotLoggedIn, "session expired")
					}
					return err
				}
				if profile.Role == "" {
					profile.Role = usr.Role
				}
				usr = profile
			}

			w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID:\t%s\n", usr.ID)
			fmt.Fprintf(w, "Name:\t%s\n", usr.FullName())
			fmt.Fprintf(w, "Email:\t%s\n", usr.Email)
			fmt.Fprintf(w, "Role:\t%s\n", nav.Label(usr.Role))
			fmt.Fprintf(w, "Landing:\t%s\n", nav.LandingPath(usr.Role))
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "confirm the session with the API")
	return cmd
}

func (cli *commandLine) navCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nav [role]",
		Short: "List the portal destinations of a role (default: the logged in user's)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var role user.Role
			if len(args) > 0 {
				role, _ = user.ParseRole(args[0])
			} else {
				sess := cli.session()
				defer sess.Close()
				usr, ok := cli.currentUser(sess)
				if !ok {
					return errNotLoggedIn
				}
				role = usr.Role
			}

			fmt.Fprintf(cli.out, "%s portal\n", nav.Label(role))
			w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
			for _, item := range nav.Items(role) {
				fmt.Fprintf(w, "%s\t%s\t%s\n", item.Path, item.Label, item.Description)
			}
			return w.Flush()
		},
	}
}

func (cli *commandLine) currentUser(sess *session.Context) (user.User, bool) {
	snap := sess.Init()
	if !snap.Authenticated() {
		return user.User{}, false
	}
	return *snap.User, true
}

// errorMessage renders err for the terminal; validation errors list their fields.
func errorMessage(err error) string {
	var vErr *core.ValidationError
	if errors.As(err, &vErr) && len(vErr.Fields) > 0 {
		msgs := make([]string, 0, len(vErr.Fields))
		for _, fErr := range vErr.Fields {
			msgs = append(msgs, fErr.Field+": "+fErr.Error)
		}
		return strings.Join(msgs, "; ")
	}
	return err.Error()
}
