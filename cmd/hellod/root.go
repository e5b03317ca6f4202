package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/advdv/bphase"
	"github.com/advdv/bphase/hellod"
	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func run(args []string) error {
	root := newRootCmd()
	root.SetArgs(args)

	return root.Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hellod",
		Short:         "hello_world server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newServeCmd(),
		newCheckCmd(),
	)

	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the site configured through HELLOD_* environment variables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := hellod.NewApp[hellod.BaseEnvironment]()
			if err := app.Err(); err != nil {
				return err
			}

			app.Run()

			return nil
		},
	}
}

type checkOptions struct {
	sitePath string
	denied   []string
}

func newCheckCmd() *cobra.Command {
	opts := checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the site file with the HELLOD_* build settings and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&opts.sitePath, "site", "s", "", "site yaml path (defaults to HELLOD_SITE_FILE)")
	fs.StringSliceVar(&opts.denied, "deny-user-agent", nil, "User-Agent prefixes the access handler rejects")

	return cmd
}

func runCheck(ctx context.Context, out io.Writer, opts checkOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	vars := env.ToMap(os.Environ())

	path := strings.TrimSpace(opts.sitePath)
	if path == "" {
		path = strings.TrimSpace(vars["HELLOD_SITE_FILE"])
	}

	if path == "" {
		return errors.New("no site file: pass --site or set HELLOD_SITE_FILE")
	}

	// the check never listens, a port is only needed to satisfy the environment.
	vars["HELLOD_SITE_FILE"] = path
	if strings.TrimSpace(vars["HELLOD_PORT"]) == "" {
		vars["HELLOD_PORT"] = "0"
	}

	if len(opts.denied) > 0 {
		vars["HELLOD_DENY_USER_AGENT_PREFIXES"] = strings.Join(opts.denied, ",")
	}

	e, err := hellod.ParseEnvFrom[hellod.BaseEnvironment](vars)
	if err != nil {
		return err
	}

	site, err := hellod.LoadSite(path)
	if err != nil {
		return err
	}

	srv, err := hellod.NewPhaseServer(ctx, hellod.PhaseServerParams{Env: e, Site: site, Logger: zap.NewNop()},
		hellod.ServerConfig{})
	if err != nil {
		return errors.Wrapf(err, "site file %s", path)
	}

	paths := locationPaths(srv.Root())
	fmt.Fprintf(out, "site file %s is ok: %d location(s): %s\n", path, len(paths), strings.Join(paths, " "))

	return nil
}

func locationPaths(loc *bphase.Location) []string {
	return append([]string{loc.Path()}, lo.FlatMap(loc.Children(), func(c *bphase.Location, _ int) []string {
		return locationPaths(c)
	})...)
}
