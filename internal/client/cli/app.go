package cli

import (
	"bufio"
	"context"
	"os"
	"path/filepath"

	"github.com/avetrano/matrixflow/internal/ai"
	"github.com/avetrano/matrixflow/internal/client/cache"
	"github.com/avetrano/matrixflow/internal/client/config"
	"github.com/avetrano/matrixflow/internal/client/engine"
	"github.com/avetrano/matrixflow/internal/client/remote"
	"github.com/avetrano/matrixflow/internal/client/session"
	"github.com/avetrano/matrixflow/internal/filex"
	"github.com/avetrano/matrixflow/internal/logging"
	"github.com/avetrano/matrixflow/internal/model"

	_ "modernc.org/sqlite"
)

// App wires the CLI to the reconciliation engine and the AI collaborators.
type App struct {
	config    *config.Config
	engine    *engine.Engine
	extractor ai.Extractor
	analyzer  ai.Analyzer
	log       logging.Logger
	reader    *bufio.Reader
}

func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	dsn := c.CacheDSN
	if dsn != ":memory:" && !filepath.IsAbs(dsn) {
		dataDir, err := filex.EnsureSubDir("data")
		if err != nil {
			return nil, err
		}
		dsn = filepath.Join(dataDir, dsn)
	}

	store, err := cache.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}

	sess, err := session.NewManager(ctx, store)
	if err != nil {
		return nil, err
	}

	adapter := remote.NewHTTPAdapter(c.RemoteURL, c.RemoteTimeout, log)
	eng := engine.New(adapter, store, sess, log)

	var (
		extractor ai.Extractor = ai.Disabled{}
		analyzer  ai.Analyzer  = ai.Disabled{}
	)
	if c.GenAIKey != "" {
		gemini, err := ai.NewGemini(ctx, c.GenAIKey, log)
		if err != nil {
			log.Warn(ctx, "ai collaborators unavailable", "err", err)
		} else {
			extractor, analyzer = gemini, gemini
		}
	}

	return &App{
		config:    c,
		engine:    eng,
		extractor: extractor,
		analyzer:  analyzer,
		log:       log.With("module", "cli"),
		reader:    bufio.NewReader(os.Stdin),
	}, nil
}

// Run starts the interactive loop and drains pending background submissions
// on the way out.
func (a *App) Run(ctx context.Context) {
	defer a.engine.Close()
	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) currentMember() *model.Member {
	return a.engine.Session().Current()
}

func (a *App) isLoggedIn() bool {
	return a.currentMember() != nil
}

func (a *App) isAdmin() bool {
	m := a.currentMember()
	return m != nil && m.Role == model.RoleAdmin
}

// status renders the prompt suffix: signed-in member and connectivity mode.
func (a *App) status() string {
	s := ""
	if m := a.currentMember(); m != nil {
		s = m.Username + " "
	}
	return "(" + s + string(a.engine.Status()) + ")"
}
