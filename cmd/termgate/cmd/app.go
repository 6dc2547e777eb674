package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runthings/termgate/credential"
	"github.com/runthings/termgate/internal/config"
	"github.com/runthings/termgate/internal/util"
	"github.com/runthings/termgate/keyring"
	"github.com/runthings/termgate/storage"
	bboltstorage "github.com/runthings/termgate/storage/bbolt"
	"github.com/runthings/termgate/storage/memory"
	"github.com/runthings/termgate/storage/postgres"
	"github.com/runthings/termgate/taxonomy"
)

// app bundles what every subcommand needs.
type app struct {
	opts    *config.Options
	logger  *slog.Logger
	repo    storage.Repository
	catalog *taxonomy.Catalog
	creds   *credential.Store
	close   func()
}

func newApp(cmd *cobra.Command) (*app, error) {
	opts, err := config.Load(cmd)
	if err != nil {
		return nil, err
	}
	level, _ := config.ParseLevel(opts.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	repo, closeFn, err := openStorage(cmd.Context(), opts)
	if err != nil {
		return nil, err
	}
	return &app{
		opts:    opts,
		logger:  logger,
		repo:    repo,
		catalog: taxonomy.NewCatalog(repo),
		creds:   credential.New(repo),
		close:   closeFn,
	}, nil
}

func openStorage(ctx context.Context, opts *config.Options) (storage.Repository, func(), error) {
	switch opts.Storage {
	case config.StorageMemory:
		return memory.NewRepository(), func() {}, nil
	case config.StoragePostgres:
		repo, err := postgres.NewRepositoryFromDSN(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		return repo, repo.Close, nil
	default:
		if err := os.MkdirAll(opts.DataDir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		repo, err := bboltstorage.NewRepositoryFromFile(filepath.Join(opts.DataDir, "termgate.db"), nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open bbolt storage: %w", err)
		}
		return repo, func() { repo.Close() }, nil
	}
}

// signingKey returns the named HMAC key. With a key file the key is
// persisted sealed under the wrapping key it holds; without one the key
// is ephemeral and every nonce and signed session dies with the process.
func (a *app) signingKey(name string) (*keyring.Key, error) {
	if a.opts.KeyFile == "" {
		a.logger.Warn("no key_file configured, using an ephemeral signing key", "key", name)
		return keyring.Ephemeral(name), nil
	}
	wrapping, err := loadOrCreateWrappingKey(a.opts.KeyFile)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(wrapping)
	return keyring.LoadOrCreate(a.repo, name, wrapping)
}

// loadOrCreateWrappingKey reads a hex-encoded 32-byte key from path,
// creating the file with a random key if it does not exist.
func loadOrCreateWrappingKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		key, err := util.NewAESKey()
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating key directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(util.HexEncode(key)+"\n"), 0o600); err != nil {
			return nil, fmt.Errorf("writing key file: %w", err)
		}
		return key, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	key, err := util.HexDecode(strings.TrimSpace(string(data)))
	if err != nil || len(key) != util.AESKeySize {
		return nil, fmt.Errorf("key file %s must hold %d hex-encoded bytes", path, util.AESKeySize)
	}
	return key, nil
}
