package client

import (
	"bufio"
	"context"
	"os"

	"github.com/spf13/cobra"

	"face-attendance/internal/face"
)

// RootOptions 全局参数
type RootOptions struct {
	Server         string
	SessionFile    string
	DescriptorFile string
	Threshold      float64
}

// NewRootCommand 不带子命令时显示 Home
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	var ui *UI

	cmd := &cobra.Command{
		Use:           "attendance",
		Short:         "Face recognition attendance client",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			ui = &UI{
				API:       NewAPI(opts.Server),
				Store:     SessionStore{Path: opts.SessionFile},
				Extractor: FileExtractor{Path: opts.DescriptorFile},
				Matcher:   face.NewMatcher(opts.Threshold),
				In:        bufio.NewReader(cmd.InOrStdin()),
				Out:       cmd.OutOrStdout(),
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error { return ui.Home(cmd.Context()) },
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.Server, "server", envOr("ATTENDANCE_SERVER", "http://127.0.0.1:5000"), "API base URL")
	pf.StringVar(&opts.SessionFile, "session-file", DefaultSessionPath(), "where the login session is stored")
	pf.StringVar(&opts.DescriptorFile, "descriptor-file", "", "JSON array written by the face extractor")
	pf.Float64Var(&opts.Threshold, "threshold", face.DefaultThreshold, "local face match threshold")

	screen := func(use, short string, run func(*UI, context.Context) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE:  func(cmd *cobra.Command, _ []string) error { return run(ui, cmd.Context()) },
		}
	}
	cmd.AddCommand(
		screen("register", "Create an account with a face descriptor", (*UI).Register),
		screen("login", "Sign in and start a session", func(u *UI, ctx context.Context) error {
			_, err := u.Login(ctx)
			return err
		}),
		screen("logout", "End the current session", (*UI).Logout),
		screen("dashboard", "Show today's status and attendance history", (*UI).Dashboard),
		screen("mark", "Mark today's attendance", (*UI).Mark),
	)
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
