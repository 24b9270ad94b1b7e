package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"validation-viewer/config"
	"validation-viewer/core/catalog"
	"validation-viewer/core/models"
	"validation-viewer/core/selection"
	"validation-viewer/logging"
	"validation-viewer/providers/validation"

	"github.com/spf13/cobra"
)

// app carries what every command needs once flags are parsed
type app struct {
	configPath string
	backendURL string

	cfg    *config.Config
	logger *slog.Logger
	client *validation.Client
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "revcompare",
		Short:        "Browse validation revisions and compare them",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.backendURL, "backend", "", "comparison backend URL (overrides config)")

	root.AddCommand(
		a.revisionsCmd(),
		a.defaultsCmd(),
		a.keyCmd(),
		a.compareCmd(),
		a.prefsCmd(),
	)
	return root
}

func (a *app) init(stderr io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.backendURL != "" {
		cfg.BackendURL = a.backendURL
	}
	a.cfg = cfg

	// keep the terminal for command output unless debugging
	level := "warn"
	if cfg.LogLevel == "debug" {
		level = "debug"
	}
	a.logger = logging.New(logging.Config{Level: level, Output: stderr})
	a.client, err = validation.NewClient(cfg.BackendURL, cfg.RequestTimeout, a.logger)
	return err
}

func (a *app) loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	revisions, err := a.client.FetchRevisions(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.New(revisions)
}

func (a *app) revisionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revisions",
		Short: "List revisions grouped by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			classes := cat.Classified()
			if classes.Reference != "" {
				fmt.Fprintf(out, "%s %s\n", titleStyle.Render("reference:"), classes.Reference)
			}
			for _, group := range []struct {
				name   string
				labels []string
			}{
				{"release", classes.Release},
				{"build", classes.Build},
				{"nightly", classes.Nightly},
			} {
				fmt.Fprintf(out, "%s %s\n", titleStyle.Render(group.name+":"), strings.Join(group.labels, " "))
			}
			return nil
		},
	}
}

func (a *app) defaultsCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Print the default selection of a mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.loadCatalog(cmd.Context())
			if err != nil {
				return err
			}
			if mode == "" {
				mode = a.cfg.DefaultMode
			}
			sel, err := cat.DefaultSelection(catalog.Mode(mode))
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(err.Error()+", using rbn"))
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(sel, " "))
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "default selection mode (all, r, b, n, nnn, rbn)")
	return cmd
}

// resolve builds a validated selection from explicit ids or a default mode.
// An unknown mode is reported on stderr and replaced by rbn.
func (a *app) resolve(stderr io.Writer, cat *catalog.Catalog, ids []string, mode, reference string) (*selection.State, error) {
	if len(ids) == 0 {
		if mode == "" {
			mode = a.cfg.DefaultMode
		}
		sel, err := cat.DefaultSelection(catalog.Mode(mode))
		if err != nil {
			fmt.Fprintln(stderr, warnStyle.Render(err.Error()+", using rbn"))
		}
		ids = sel
	}

	state := selection.NewState(cat.Contains)
	if err := state.SetSelected(ids); err != nil {
		return nil, err
	}
	if reference != "" {
		if !cat.Contains(reference) {
			return nil, &models.UserInputError{Value: reference, Err: models.ErrUnknownRevision}
		}
		state.SetReference(reference)
	}
	return state, nil
}
