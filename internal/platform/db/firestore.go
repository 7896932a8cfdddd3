package db

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	cfgpkg "github.com/prepstack/billing/pkg/config"
)

// NewClient connects to Firestore using the configured project. Credentials
// come from the configured service-account file or application default
// credentials.
func NewClient(lc fx.Lifecycle, l *zap.SugaredLogger, cfg *cfgpkg.Config) (*firestore.Client, error) {
	if cfg.Firestore.ProjectID == "" {
		l.Error("firestore project ID is empty")
		return nil, errors.New("firestore: project ID not configured")
	}

	var opts []option.ClientOption
	if cfg.Firestore.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firestore.CredentialsFile))
	}

	client, err := firestore.NewClient(context.Background(), cfg.Firestore.ProjectID, opts...)
	if err != nil {
		l.Errorf("failed to connect firestore: %v", err)
		return nil, err
	}
	l.Infow("connected to firestore", "project", cfg.Firestore.ProjectID)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			l.Infow("closing firestore client")
			return client.Close()
		},
	})
	return client, nil
}

var Module = fx.Options(
	fx.Provide(NewClient),
)
