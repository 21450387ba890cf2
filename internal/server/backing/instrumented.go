package backing

import (
	"context"
	"io"
	"time"

	"github.com/dmitrijs2005/filestore/internal/server/metrics"
	"github.com/dmitrijs2005/filestore/internal/server/models"
)

// instrumented records duration and outcome of every call in Prometheus.
type instrumented struct {
	Store
	kind string
}

// Instrument wraps s with backing operation metrics.
func Instrument(s Store) Store {
	return &instrumented{Store: s, kind: string(s.Kind())}
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	metrics.RecordBackingOperation(i.kind, op, time.Since(start), err == nil)
}

func (i *instrumented) Upload(ctx context.Context, r io.Reader, name string) (key string, err error) {
	defer func(start time.Time) { i.observe("upload", start, err) }(time.Now())
	return i.Store.Upload(ctx, r, name)
}

func (i *instrumented) UploadSized(ctx context.Context, r io.Reader, name string, size int64) (key string, err error) {
	defer func(start time.Time) { i.observe("upload", start, err) }(time.Now())
	return i.Store.UploadSized(ctx, r, name, size)
}

func (i *instrumented) Delete(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { i.observe("delete", start, err) }(time.Now())
	return i.Store.Delete(ctx, key)
}

func (i *instrumented) DeleteMany(ctx context.Context, keys []string) (err error) {
	defer func(start time.Time) { i.observe("delete_many", start, err) }(time.Now())
	return i.Store.DeleteMany(ctx, keys)
}

func (i *instrumented) Download(ctx context.Context, key string) (d *models.Download, err error) {
	defer func(start time.Time) { i.observe("download", start, err) }(time.Now())
	return i.Store.Download(ctx, key)
}

func (i *instrumented) DownloadRange(ctx context.Context, key string, start, end int64) (d *models.Download, err error) {
	defer func(t time.Time) { i.observe("download_range", t, err) }(time.Now())
	return i.Store.DownloadRange(ctx, key, start, end)
}

// Close forwards to the wrapped store when it holds resources.
func (i *instrumented) Close() error {
	if c, ok := i.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
