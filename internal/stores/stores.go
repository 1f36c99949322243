// Package stores opens the storage backend selected by the configuration.
package stores

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/memval/internal/config"
	"github.com/vango-dev/memval/internal/errors"
	"github.com/vango-dev/memval/pkg/storage"
)

// Open returns the store described by cfg. When cfg.Storage.Secure is set
// the result is a storage.SecureStore.
func Open(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	store, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, errors.New("M200").
			WithDetail("Could not open the " + cfg.Storage.Backend + " backend").
			Wrap(err)
	}

	if !cfg.Storage.Secure {
		if cfg.Storage.Instrument {
			return storage.Instrument(store, storage.WithBackendName(cfg.Storage.Backend)), nil
		}
		return store, nil
	}

	secret, err := cfg.Secret()
	if err != nil {
		store.Close()
		return nil, err
	}
	var opts []storage.SealOption
	if cfg.Storage.Salt != "" {
		opts = append(opts, storage.WithSealSalt([]byte(cfg.Storage.Salt)))
	}
	sealed, err := storage.NewSealedStore(store, secret, opts...)
	if err != nil {
		store.Close()
		return nil, errors.New("M123").Wrap(err)
	}
	if cfg.Storage.Instrument {
		return storage.InstrumentSecure(sealed, storage.WithBackendName(cfg.Storage.Backend)), nil
	}
	return sealed, nil
}

// OpenSecure is Open for callers that require sealed storage.
func OpenSecure(ctx context.Context, cfg *config.Config) (storage.SecureStore, error) {
	if !cfg.Storage.Secure {
		return nil, errors.New("M123").
			WithDetail("storage.secure is off").
			WithSuggestion("Pass --secure or set storage.secure: true")
	}
	store, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store.(storage.SecureStore), nil
}

func openBackend(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	sc := cfg.Storage
	switch sc.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil
	case "bolt":
		return storage.NewBoltStore(storage.BoltStoreConfig{
			Path:   sc.Path,
			Bucket: sc.Bucket,
		})
	case "sqlite":
		var opts []storage.SQLStoreOption
		if sc.Table != "" {
			opts = append(opts, storage.WithSQLTableName(sc.Table))
		}
		return storage.OpenSQLite(ctx, sc.Path, opts...)
	case "s3":
		return storage.NewS3Store(newS3Client(sc.S3), sc.Bucket, sc.Prefix), nil
	}
	return nil, errors.New("M122").WithDetail(fmt.Sprintf("Unknown storage backend %q", sc.Backend))
}

func newS3Client(sc config.S3Config) *s3.Client {
	opts := s3.Options{
		Region:       sc.Region,
		UsePathStyle: sc.PathStyle,
		Credentials:  aws.CredentialsProviderFunc(environmentCredentials),
	}
	if sc.Endpoint != "" {
		opts.BaseEndpoint = aws.String(sc.Endpoint)
	}
	return s3.New(opts)
}

func environmentCredentials(context.Context) (aws.Credentials, error) {
	id := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.Credentials{}, errors.New("M200").
			WithDetail("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set for the s3 backend")
	}
	return aws.Credentials{
		AccessKeyID:     id,
		SecretAccessKey: secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "environment",
	}, nil
}
