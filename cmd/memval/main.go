package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vango-dev/memval/internal/config"
	"github.com/vango-dev/memval/internal/errors"
	"github.com/vango-dev/memval/internal/stores"
	"github.com/vango-dev/memval/pkg/memval"
	"github.com/vango-dev/memval/pkg/storage"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries state shared by all commands of one invocation.
type app struct {
	v          *viper.Viper
	configPath string
	quiet      bool
	cfg        *config.Config
}

func rootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}

	cmd := &cobra.Command{
		Use:   "memval",
		Short: "Observable values backed by persistent storage",
		Long: `memval reads, writes and serves observable values kept in a
storage backend (bolt, sqlite, s3 or memory).

Values are JSON. Configuration comes from ./memval.yaml,
~/.config/memval/memval.yaml, MEMVAL_* environment variables and flags.

Examples:
  memval set theme '"dark"'
  memval update visits '(value ?? 0) + 1'
  memval get visits
  memval serve --addr :7070 theme visits`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["config"] == "none" {
				return nil
			}
			return a.load(cmd.ErrOrStderr())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file (default ./memval.yaml)")
	flags.String("backend", config.DefaultBackend, "Storage backend: memory, bolt, sqlite or s3")
	flags.String("path", config.DefaultPath, "Database file for bolt and sqlite")
	flags.String("codec", "json", "Slot codec: json or cbor")
	flags.Bool("secure", false, "Seal values with the secret named by storage.secret_env")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "Suppress warnings")

	a.v.BindPFlag("storage.backend", flags.Lookup("backend"))
	a.v.BindPFlag("storage.path", flags.Lookup("path"))
	a.v.BindPFlag("storage.codec", flags.Lookup("codec"))
	a.v.BindPFlag("storage.secure", flags.Lookup("secure"))

	cmd.AddCommand(
		getCmd(a),
		setCmd(a),
		updateCmd(a),
		deleteCmd(a),
		serveCmd(a),
		shellCmd(a),
		versionCmd(),
	)

	return cmd
}

// load reads the configuration and sets up the warning channel.
func (a *app) load(stderr io.Writer) error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	memval.SetLogger(slog.New(slog.NewTextHandler(stderr, nil)))
	if a.quiet || !cfg.Warnings {
		memval.DisableWarnings()
	} else {
		memval.EnableWarnings()
	}
	return nil
}

// openStore opens the configured backend.
func (a *app) openStore(ctx context.Context) (storage.Store, error) {
	return stores.Open(ctx, a.cfg)
}

// bind creates the stored value for key on store.
func (a *app) bind(store storage.Store, key string) *memval.StoredValue[any] {
	opts := []memval.Option[any]{
		memval.WithCodec[any](a.cfg.Codec()),
		memval.WithTimeout[any](a.cfg.Storage.Timeout),
	}
	if secure, ok := store.(storage.SecureStore); ok && a.cfg.Storage.Secure {
		return memval.NewSecureStored(secure, key, opts...)
	}
	return memval.NewStored(store, key, opts...)
}

// handle is a hydrated value together with the store it lives in.
type handle struct {
	store storage.Store
	value *memval.StoredValue[any]
}

// openValue opens the store and waits for key to hydrate.
func (a *app) openValue(ctx context.Context, key string) (*handle, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	value := a.bind(store, key)
	select {
	case <-value.Ready():
	case <-ctx.Done():
		store.Close()
		return nil, errors.New("M201").
			WithDetail("Timed out loading " + key).
			Wrap(ctx.Err())
	}
	return &handle{store: store, value: value}, nil
}

// close waits for pending writes and closes the store.
func (h *handle) close(ctx context.Context) error {
	err := h.value.Settle(ctx)
	if cerr := h.store.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.New("M201").Wrap(err)
	}
	return nil
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
