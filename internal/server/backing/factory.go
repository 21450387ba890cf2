package backing

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/filestore/internal/common"
	"github.com/dmitrijs2005/filestore/internal/logging"
	"github.com/dmitrijs2005/filestore/internal/server/config"
)

// New builds the backend selected by cfg.Backend, wrapped with metrics.
// The result implements io.Closer; callers should close it on shutdown.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (Store, error) {
	var (
		s   Store
		err error
	)

	switch cfg.Backend {
	case config.BackendS3:
		s, err = NewS3Store(ctx, S3Config{
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
	case config.BackendDisk:
		s, err = NewDiskStore(cfg.DiskRoot)
	case config.BackendBadger:
		s, err = NewBadgerStore(cfg.BadgerDir, log)
	case config.BackendMemory:
		s = NewMemoryStore()
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", common.ErrorInvalidArgument, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "backing store ready", "kind", string(s.Kind()))
	return Instrument(s), nil
}
