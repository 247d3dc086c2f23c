package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"artify/internal/app"
	"artify/internal/auth"
	"artify/internal/config"
	"artify/internal/platform/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// flag names
const (
	flagEmail    = "email"
	flagPassword = "password"
	flagRole     = "role"
	flagInvite   = "invite"
	flagVerbose  = "verbose"
)

// ConfigLoader returns the configuration a command runs with.
type ConfigLoader func() (*config.Config, error)

// runtime is what one invocation works against: a provider restored from
// the persisted session.
type runtime struct {
	provider *auth.Provider
	cleanup  func()
}

// NewRootCmd builds the command tree. load is called once per invocation.
func NewRootCmd(load ConfigLoader) *cobra.Command {
	root := &cobra.Command{
		Use:           "artifyctl",
		Short:         "artifyctl - sign in to Artify from the command line",
		Long:          `artifyctl drives the Artify session from a terminal. The session is kept between invocations.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolP(flagVerbose, "v", false, "Log to stderr")

	withProvider := func(fn providerFunc) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}
			verbose, _ := cmd.Flags().GetBool(flagVerbose)
			rt, err := openRuntime(cmd.Context(), cfg, verbose)
			if err != nil {
				return err
			}
			defer rt.cleanup()
			return fn(cmd, rt.provider)
		}
	}

	root.AddCommand(
		newSignInCmd(withProvider),
		newSignUpCmd(withProvider),
		newSignOutCmd(withProvider),
		newWhoAmICmd(withProvider),
		newResetPasswordCmd(withProvider),
	)
	return root
}

// providerFunc is a command body run against a started provider.
type providerFunc func(cmd *cobra.Command, p *auth.Provider) error

type runner func(providerFunc) func(*cobra.Command, []string) error

// Execute runs the CLI with configuration from the environment.
func Execute() error {
	return NewRootCmd(config.Load).Execute()
}

func openRuntime(ctx context.Context, cfg *config.Config, verbose bool) (*runtime, error) {
	log := zap.NewNop()
	if verbose {
		l, err := logger.New(cfg)
		if err != nil {
			return nil, err
		}
		log = l
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		_ = log.Sync()
	}
	fail := func(err error) (*runtime, error) {
		cleanup()
		return nil, err
	}

	persist, closePersist, err := app.ProvideSessionPersistence(cfg, log)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, closePersist)

	store, err := app.ProvideSessionStore(cfg, persist, log)
	if err != nil {
		return fail(err)
	}

	db, closeDB, err := app.ProvideProfileDB(cfg, log)
	if err != nil {
		return fail(err)
	}
	cleanups = append(cleanups, closeDB)

	profiles := app.ProvideProfileRepository(db)
	if _, err := app.ProvideProfileService(cfg, profiles, log); err != nil {
		return fail(err)
	}

	provider, closeProvider := app.ProvideAuthProvider(cfg, store, profiles, app.ProvideInvitationRepository(db), log)
	cleanups = append(cleanups, closeProvider)

	provider.Start(ctx)
	return &runtime{provider: provider, cleanup: cleanup}, nil
}

// printJSON pretty prints v to the command's output.
func printJSON(cmd *cobra.Command, v interface{}) error {
	prettyJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error formatting response: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(prettyJSON))
	return nil
}
