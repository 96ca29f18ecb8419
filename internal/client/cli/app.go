package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophaccount/internal/client/client"
	"github.com/dmitrijs2005/gophaccount/internal/client/config"
	"github.com/dmitrijs2005/gophaccount/internal/client/services"
	"github.com/dmitrijs2005/gophaccount/internal/filex"
	"github.com/jonboulle/clockwork"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const pingTimeout = 3 * time.Second

type App struct {
	config      *config.Config
	authService services.AuthService
	db          *sql.DB
	clock       clockwork.Clock
	userName    string

	mu   sync.Mutex
	Mode Mode

	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens the session database and builds the services.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	path, err := filex.EnsureParentDir(c.SessionDB)
	if err != nil {
		return nil, fmt.Errorf("session db dir: %w", err)
	}

	db, err := client.InitDatabase(ctx, path)
	if err != nil {
		return nil, err
	}

	as := services.NewAuthService(client.NewHTTPClient(c.ServerURL, c.RequestTimeout), db)

	return newApp(c, as, db, os.Stdin, os.Stdout), nil
}

func newApp(c *config.Config, as services.AuthService, db *sql.DB, in io.Reader, out io.Writer) *App {
	return &App{
		config:      c,
		authService: as,
		db:          db,
		clock:       clockwork.NewRealClock(),
		reader:      bufio.NewReader(in),
		out:         out,
	}
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		fmt.Fprintf(a.out, "Switched to %s mode\n", mode)
	}
}

// Run restores the stored session, starts the status watcher and blocks in
// the REPL until the user exits or input ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if a.db != nil {
		defer a.db.Close()
	}

	if name, err := a.authService.CurrentUser(ctx); err == nil {
		a.userName = name
	}
	a.checkOnline(ctx)

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	fmt.Fprintln(a.out, "Account CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}

func (a *App) isLoggedIn() bool {
	return a.userName != ""
}

func (a *App) getStatus() string {
	s := ""
	if a.userName != "" {
		s = a.userName + " "
	}
	a.mu.Lock()
	mode := a.Mode
	a.mu.Unlock()
	if mode != "" {
		s = s + string(mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

func (a *App) checkOnline(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := a.authService.Ping(pctx)
	cancel()

	if err != nil {
		a.setMode(ModeOffline)
	} else {
		a.setMode(ModeOnline)
	}
}

// StartOnlineStatusWatcher pings the server every interval until ctx ends.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := a.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}
