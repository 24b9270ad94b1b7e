package main

import (
	"context"
	"fmt"
	"sort"

	"validation-viewer/config"
	"validation-viewer/core/preferences"
	"validation-viewer/core/repository"
	"validation-viewer/storage"

	"github.com/spf13/cobra"
)

// openDurable opens the configured durable preference backend
func (a *app) openDurable(ctx context.Context) (preferences.Backend, func() error, error) {
	switch a.cfg.PreferenceBackend {
	case config.PreferencePostgres:
		db, err := repository.NewDB(a.cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repository.NewPreferenceRepository(db), db.Close, nil
	case config.PreferenceBadger:
		bcfg := storage.DefaultBadgerConfig(a.cfg.BadgerPath)
		bcfg.Logger = a.logger
		store, err := storage.OpenBadgerStore(bcfg)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		a.logger.Warn("memory preference backend does not outlive this command")
		return preferences.NewMemoryBackend(), func() error { return nil }, nil
	}
}

func (a *app) prefsCmd() *cobra.Command {
	var clientID string
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Read and write viewer preferences",
	}
	cmd.PersistentFlags().StringVar(&clientID, "client", "cli", "client id owning the preferences")

	withStore := func(ctx context.Context, fn func(*preferences.Store) error) error {
		durable, closeFn, err := a.openDurable(ctx)
		if err != nil {
			return err
		}
		defer closeFn()

		store, err := preferences.NewStore(preferences.StoreConfig{
			Durable:   durable,
			Session:   preferences.NewMemoryBackend(),
			ClientID:  clientID,
			SessionID: "cli",
			Prefix:    a.cfg.StoragePrefix,
			Logger:    a.logger,
		})
		if err != nil {
			return err
		}
		return fn(store)
	}

	get := &cobra.Command{
		Use:   "get <scope> <name>",
		Short: "Print a preference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := preferences.ParseScope(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(store *preferences.Store) error {
				v, ok, err := store.Recover(cmd.Context(), scope, args[1])
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("(unset)"))
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), v.Encode())
				return nil
			})
		},
	}

	set := &cobra.Command{
		Use:   "set <scope> <name> <value>",
		Short: "Store a preference; true, false and null are stored as such",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := preferences.ParseScope(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(store *preferences.Store) error {
				if err := store.Preserve(cmd.Context(), scope, args[1], preferences.Decode(args[2])); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", store.Key(args[1]), args[2])
				return nil
			})
		},
	}

	unset := &cobra.Command{
		Use:   "unset <scope> <name>",
		Short: "Remove a preference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := preferences.ParseScope(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(store *preferences.Store) error {
				return store.Forget(cmd.Context(), scope, args[1])
			})
		},
	}

	list := &cobra.Command{
		Use:   "list <scope>",
		Short: "Print every preference stored in a scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := preferences.ParseScope(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(store *preferences.Store) error {
				values, err := store.List(cmd.Context(), scope)
				if err != nil {
					return err
				}
				names := make([]string, 0, len(values))
				for name := range values {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", labelStyle.Render(name), values[name].Encode())
				}
				return nil
			})
		},
	}

	cmd.AddCommand(get, set, unset, list)
	return cmd
}
