package cli

import (
	"log/slog"
	"os"

	"github.com/randalmurphal/governor/internal/api"
	"github.com/randalmurphal/governor/internal/artifact"
	"github.com/randalmurphal/governor/internal/config"
	"github.com/randalmurphal/governor/internal/engine"
	"github.com/randalmurphal/governor/internal/errs"
	"github.com/randalmurphal/governor/internal/events"
	"github.com/randalmurphal/governor/internal/gate"
	"github.com/randalmurphal/governor/internal/governance"
	"github.com/randalmurphal/governor/internal/hosting"
	"github.com/randalmurphal/governor/internal/orchestrator"
	"github.com/randalmurphal/governor/internal/sandbox"
	"github.com/randalmurphal/governor/internal/store"
	"github.com/randalmurphal/governor/internal/vcs"
)

// app bundles everything a command needs to call into internal/api,
// built fresh for each invocation from the project's configuration
// (mirroring the teacher's per-command config.Load()/backend-open
// pattern rather than a long-lived daemon).
type app struct {
	cfg *config.Config
	db  *store.DB
	svc api.Service
	log *slog.Logger
}

func newApp() (*app, error) {
	cfg, err := config.Load(projectRoot)
	if err != nil {
		return nil, err
	}

	var db *store.DB
	switch cfg.Database.Type {
	case config.DatabasePostgres:
		db, err = store.OpenPostgres(cfg.Database.Postgres.DSN, cfg.Database.Postgres.Schema)
	default:
		db, err = store.Open(projectRoot + "/" + cfg.Database.SQLite.Path)
	}
	if err != nil {
		return nil, errs.Wrap(errs.CodeStorage, "open database", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	bus := events.New()

	artifacts := artifact.New(projectRoot, db)
	gov := governance.New(db, bus)

	cmdRunner := sandbox.NewRunner(projectRoot, cfg.Sandbox.CommandPolicy(), bus)
	gateRun := gate.New(cmdRunner, bus)
	vcsAdapter := vcs.New(cmdRunner)

	planner := orchestrator.NewPlanner(db, artifacts, gov, bus)
	architect := orchestrator.NewArchitect(db, artifacts, gov, bus)
	coder := orchestrator.NewCoder(db, artifacts, gov, gateRun, vcsAdapter, bus)
	if cfg.Hosting.Owner != "" && cfg.Hosting.Repo != "" {
		coder.WithHosting(hosting.NewGitHubProvider(cfg.Hosting.Token), cfg.Hosting.Owner, cfg.Hosting.Repo, cfg.Hosting.Base)
	}

	svc := api.New(db, artifacts, gov, planner, architect, coder, vcsAdapter)
	return &app{cfg: cfg, db: db, svc: svc, log: log}, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

// engineFor builds a CLI-backed engine.Engine for name, or for the
// configured default engine when name is empty, spawning it through a
// new sandboxed command runner with the same command policy the gate
// evaluator and VCS adapter use.
func (a *app) engineFor(name string) engine.Engine {
	if name == "" {
		name = a.cfg.DefaultEngine
	}
	runner := sandbox.NewRunner(projectRoot, a.cfg.Sandbox.CommandPolicy(), nil)
	return engine.NewCLIEngine(name, name, nil, runner, a.log)
}
