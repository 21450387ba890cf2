package cli

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/dmitrijs2005/filestore/internal/client/client"
	"github.com/dmitrijs2005/filestore/internal/client/config"
	"github.com/dmitrijs2005/filestore/internal/netx"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// fileAPI is the HTTP surface the commands use; *netx.FileClient
// satisfies it.
type fileAPI interface {
	SetToken(token string)
	Upload(ctx context.Context, lifecycle, name string, r io.Reader, size int64) (*netx.UploadResult, error)
	Download(ctx context.Context, id, rangeHeader string, w io.Writer) (*netx.DownloadResult, error)
	Size(ctx context.Context, id string) (int64, error)
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) error
	DeleteAll(ctx context.Context) error
	Collect(ctx context.Context, batch int) (*netx.SweepResult, error)
}

type pinger interface {
	Ping(ctx context.Context) error
	Close() error
}

type App struct {
	config   *config.Config
	files    fileAPI
	health   pinger
	loggedIn bool

	mu   sync.Mutex
	Mode Mode
}

func NewApp(c *config.Config) (*App, error) {

	hc, err := client.NewHealthClient(c.GRPCAddr)
	if err != nil {
		return nil, err
	}

	return &App{
		config: c,
		files:  netx.NewFileClient(c.ServerURL, nil),
		health: hc,
	}, nil
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

func (a *App) Run(ctx context.Context) {
	defer a.health.Close()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.loggedIn
}

// checkOnline probes the server once and updates the mode.
func (a *App) checkOnline(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.health.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}
