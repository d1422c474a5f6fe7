package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	gfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"

	"github.com/jredh-dev/foodshare/config"
	"github.com/jredh-dev/foodshare/internal/database"
	"github.com/jredh-dev/foodshare/internal/donation"
	"github.com/jredh-dev/foodshare/internal/firestore"
	"github.com/jredh-dev/foodshare/internal/identity"
	"github.com/jredh-dev/foodshare/internal/objectstore"
	"github.com/jredh-dev/foodshare/internal/store"
)

// backends are the collaborators selected by configuration.
type backends struct {
	store    donation.Store
	verifier donation.Verifier
	objects  donation.ObjectStore
	// media serves disk objects; nil for other object backends.
	media http.Handler

	closers []func() error
}

func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

func openBackends(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}
	fb := &firebaseApp{cfg: cfg}

	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	switch cfg.Store.Backend {
	case "sqlite":
		db, err := database.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		b.closers = append(b.closers, db.Close)
		b.store = db
		logger.Info("sqlite store ready", "path", cfg.Store.SQLitePath)
	case "firestore":
		client, err := fb.firestore(ctx)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		b.store = firestore.New(client, "")
		logger.Info("firestore store ready", "project", cfg.Firebase.ProjectID, "database", cfg.Firebase.FirestoreDatabase)
	case "memory":
		b.store = store.NewMemory()
		logger.Warn("using in-memory store; data is lost on restart")
	}

	switch cfg.Auth.Provider {
	case "jwt":
		if cfg.Auth.SigningKey == "" {
			logger.Warn("JWT_SIGNING_KEY is empty; using the insecure development key")
		}
		b.verifier = identity.NewJWTVerifier(cfg.JWTSigningKey(), cfg.Auth.Issuer)
	case "firebase":
		app, err := fb.app(ctx)
		if err != nil {
			return nil, err
		}
		client, err := app.Auth(ctx)
		if err != nil {
			return nil, fmt.Errorf("firebase auth client: %w", err)
		}
		b.verifier = identity.NewFirebaseVerifier(client)
	}

	switch cfg.Objects.Backend {
	case "disk":
		disk, err := objectstore.NewDisk(cfg.Objects.MediaRoot, cfg.Objects.BaseURL)
		if err != nil {
			return nil, err
		}
		b.objects = disk
		b.media = disk.Handler()
	case "firebase":
		app, err := fb.app(ctx)
		if err != nil {
			return nil, err
		}
		client, err := app.Storage(ctx)
		if err != nil {
			return nil, fmt.Errorf("firebase storage client: %w", err)
		}
		bucket, err := client.Bucket(cfg.Firebase.StorageBucket)
		if err != nil {
			return nil, fmt.Errorf("storage bucket %s: %w", cfg.Firebase.StorageBucket, err)
		}
		b.objects = objectstore.NewGCS(bucket, cfg.Firebase.StorageBucket)
	case "memory":
		b.objects = objectstore.NewMemory()
	}

	ok = true
	return b, nil
}

// firebaseApp initializes the Firebase app once, on first use.
type firebaseApp struct {
	cfg *config.Config
	fa  *firebase.App
}

func (f *firebaseApp) options() []option.ClientOption {
	if f.cfg.Firebase.CredentialsPath == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(f.cfg.Firebase.CredentialsPath)}
}

func (f *firebaseApp) useEmulator() {
	if !f.cfg.Firebase.UseEmulator {
		return
	}
	os.Setenv("FIREBASE_AUTH_EMULATOR_HOST", f.cfg.Firebase.EmulatorAuthHost)
	os.Setenv("FIRESTORE_EMULATOR_HOST", f.cfg.Firebase.EmulatorFirestoreHost)
}

func (f *firebaseApp) app(ctx context.Context) (*firebase.App, error) {
	if f.fa != nil {
		return f.fa, nil
	}
	f.useEmulator()
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     f.cfg.Firebase.ProjectID,
		StorageBucket: f.cfg.Firebase.StorageBucket,
	}, f.options()...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase: %w", err)
	}
	f.fa = app
	return app, nil
}

func (f *firebaseApp) firestore(ctx context.Context) (*gfirestore.Client, error) {
	f.useEmulator()
	client, err := gfirestore.NewClientWithDatabase(ctx, f.cfg.Firebase.ProjectID, f.cfg.Firebase.FirestoreDatabase, f.options()...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return client, nil
}
