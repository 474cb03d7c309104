package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/move-leads-platform/internal/archive"
	appconfig "github.com/wolfman30/move-leads-platform/internal/config"
	"github.com/wolfman30/move-leads-platform/internal/leads"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

// Storage is the lead repository plus whatever must be closed on shutdown.
type Storage struct {
	Repo    leads.Repository
	Backend string
	close   func()
}

// Close releases the backing connection pool, if any.
func (s *Storage) Close() {
	if s != nil && s.close != nil {
		s.close()
	}
}

// BuildRepository selects the lead store named by the configuration.
func BuildRepository(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*Storage, error) {
	if logger == nil {
		logger = logging.Default()
	}
	backend := cfg.ResolvedStorageBackend()

	switch backend {
	case "memory":
		logger.Warn("using in-memory lead storage; data is lost on restart")
		return &Storage{Repo: leads.NewInMemoryRepository(), Backend: backend}, nil
	case "postgres":
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("bootstrap: DATABASE_URL is required for postgres storage")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: open postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
		}
		logger.Info("using postgres lead storage")
		return &Storage{Repo: leads.NewPostgresRepository(pool), Backend: backend, close: pool.Close}, nil
	case "dynamodb":
		if strings.TrimSpace(cfg.LeadsTable) == "" {
			return nil, fmt.Errorf("bootstrap: LEADS_TABLE is required for dynamodb storage")
		}
		client := dynamodb.NewFromConfig(awsCfg)
		logger.Info("using dynamodb lead storage", "table", cfg.LeadsTable)
		return &Storage{Repo: leads.NewDynamoRepository(client, cfg.LeadsTable, logger), Backend: backend}, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown storage backend %q", backend)
	}
}

// BuildArchiver returns the S3 snapshot store, or nil when no bucket is configured.
func BuildArchiver(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) leads.SnapshotArchiver {
	if cfg == nil || strings.TrimSpace(cfg.ArchiveBucket) == "" {
		return nil
	}
	pathStyle := strings.TrimSpace(cfg.AWSEndpointOverride) != ""
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = pathStyle
	})
	store := archive.NewStore(client, cfg.ArchiveBucket, logger)
	if !store.Enabled() {
		return nil
	}
	return store
}
