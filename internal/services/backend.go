package services

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/Lllllllleong/bonafideflow/internal/approval"
	"github.com/Lllllllleong/bonafideflow/internal/audit"
	"github.com/Lllllllleong/bonafideflow/internal/config"
	"github.com/Lllllllleong/bonafideflow/internal/directory"
	"github.com/Lllllllleong/bonafideflow/internal/extract"
	"github.com/Lllllllleong/bonafideflow/internal/gcp"
	"github.com/Lllllllleong/bonafideflow/internal/lock"
	"github.com/Lllllllleong/bonafideflow/internal/logger"
	"github.com/Lllllllleong/bonafideflow/internal/models"
	"github.com/Lllllllleong/bonafideflow/internal/store"
)

// BlobStore holds request documents.
type BlobStore interface {
	Bucket() string
	Put(ctx context.Context, object string, data []byte, contentType string, metadata map[string]string) error
	Get(ctx context.Context, bucket, object string) ([]byte, error)
}

// TextReader converts stored documents into plain text.
type TextReader interface {
	Text(ctx context.Context, data []byte) (string, error)
	JoinedText(ctx context.Context, docs ...[]byte) (string, error)
}

// ModelSelector picks the extractor for a client-facing model name.
type ModelSelector interface {
	Select(model string) (audit.Extractor, string, error)
}

// Locker serialises work on one request.
type Locker interface {
	WithLock(ctx context.Context, requestID string, fn func(ctx context.Context) error) error
}

// Backend is the set of clients shared by every function. It is built once
// per instance.
type Backend struct {
	Config    *config.Config
	Logger    *zap.Logger
	Repo      store.Repository
	Directory directory.Directory
	Locker    Locker
	Blobs     BlobStore
	Reader    TextReader
	Models    ModelSelector
	Chain     *approval.Chain

	now     func() time.Time
	closers []func() error
}

// NewBackend loads configuration and connects every client.
func NewBackend(ctx context.Context) (*Backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format).With(zap.String("app", cfg.App.Name))

	b := &Backend{
		Config: cfg,
		Logger: log,
		Reader: extract.NewPDFTextReader(log),
		Chain:  approval.NewChain(cfg.Approval.ProgramCoordinatorStage),
		now:    time.Now,
	}
	if err := b.connect(ctx); err != nil {
		_ = b.Close()
		return nil, err
	}
	log.Info("Backend initialized.",
		zap.String("driver", cfg.Database.Driver),
		zap.String("auditMode", cfg.Audit.Mode),
		zap.Strings("stages", stageNames(b.Chain)),
	)
	return b, nil
}

func (b *Backend) connect(ctx context.Context) error {
	cfg := b.Config

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.GCP)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, firestoreClient.Close)

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}
	b.closers = append(b.closers, storageClient.Close)
	b.Blobs = gcp.NewObjectStore(storageClient, cfg.GCP.DocumentsBucket, b.Logger)

	if b.Repo, err = b.openRepository(ctx, firestoreClient); err != nil {
		return err
	}

	var dir directory.Directory = directory.NewFirestoreDirectory(firestoreClient, cfg.GCP.StaffCollection, cfg.GCP.StudentsCollection)
	var locker *lock.Locker
	if rc := cfg.Database.Redis; rc.Address != "" {
		rdb, err := lock.NewRedisClient(ctx, rc)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, rdb.Close)
		dir = directory.NewCachedDirectory(dir, rdb, time.Duration(rc.CacheTTL)*time.Second, b.Logger)
		locker = lock.NewLocker(rdb, time.Duration(rc.LockTTL)*time.Second, b.Logger)
	} else {
		b.Logger.Warn("Redis not configured; running without directory cache or request locks.")
	}
	b.Directory = dir
	b.Locker = locker

	registry, err := extract.NewRegistryFromConfig(ctx, cfg, b.Logger)
	if err != nil {
		return err
	}
	b.closers = append(b.closers, registry.Close)
	b.Models = registry
	return nil
}

func (b *Backend) openRepository(ctx context.Context, fc *firestore.Client) (store.Repository, error) {
	if b.Config.Database.Driver != config.DriverPostgres {
		return store.NewFirestoreStore(fc, b.Config.GCP.RequestsCollection), nil
	}
	db, err := store.OpenPostgres(b.Config.Database.Postgres)
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, db.Close)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	pg := store.NewPostgresStore(db)
	if err := pg.Migrate(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}

// Close releases every client in reverse order of creation.
func (b *Backend) Close() error {
	var firstErr error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.closers = nil
	return firstErr
}

// actor resolves the calling user. Unknown users are unauthorized.
func (b *Backend) actor(ctx context.Context, userID string) (approval.Actor, error) {
	if userID == "" {
		return approval.Actor{}, fmt.Errorf("%w: missing user id", ErrUnauthorized)
	}
	a, err := b.Directory.Lookup(ctx, userID)
	if err != nil {
		return approval.Actor{}, translate(err)
	}
	return a, nil
}

func (b *Backend) withLock(ctx context.Context, requestID string, fn func(ctx context.Context) error) error {
	if b.Locker == nil {
		return fn(ctx)
	}
	return b.Locker.WithLock(ctx, requestID, fn)
}

// runCycle runs one audit cycle with the requested model. The returned model
// name is the one actually used, even on failure.
func (b *Backend) runCycle(ctx context.Context, text string, kind audit.SchemaVariant, model string, expected *audit.ExpectedValues) (*audit.Result, string, error) {
	ext, used, err := b.Models.Select(model)
	if err != nil {
		return nil, model, fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	res, err := audit.NewController(ext, b.Config.Extraction.MaxAttempts, b.Logger).Run(ctx, text, kind, expected)
	if err != nil {
		return nil, used, translate(err)
	}
	return res, used, nil
}

// view renders a request for clients.
func (b *Backend) view(req *models.Request) *models.RequestView {
	return &models.RequestView{
		Request:       req,
		Phase:         b.Chain.Phase(&req.Approval),
		ApprovalChain: b.Chain.View(&req.Approval),
	}
}

func (b *Backend) views(reqs []*models.Request) *models.ListResponse {
	out := make([]*models.RequestView, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, b.view(r))
	}
	return &models.ListResponse{Requests: out, Count: len(out)}
}

func stageNames(c *approval.Chain) []string {
	var out []string
	for _, s := range c.Stages() {
		out = append(out, string(s))
	}
	return out
}
