package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
)

// SourceDir is where new migrations are written by the create command.
const SourceDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Command names accepted by Runner.Apply.
const (
	CommandUp     = "up"
	CommandDown   = "down"
	CommandRedo   = "redo"
	CommandStatus = "status"
)

// Step is one migration touched or inspected by a command.
type Step struct {
	Version   int64
	File      string
	State     string
	Took      time.Duration
	AppliedAt time.Time
}

func (s Step) String() string {
	if !s.AppliedAt.IsZero() {
		return fmt.Sprintf("%d %s %s (%s)", s.Version, s.File, s.State, s.AppliedAt.UTC().Format(time.RFC3339))
	}
	if s.Took > 0 {
		return fmt.Sprintf("%d %s %s in %s", s.Version, s.File, s.State, s.Took.Round(time.Millisecond))
	}
	return fmt.Sprintf("%d %s %s", s.Version, s.File, s.State)
}

// Runner applies one migration set to one database. The database handle is
// borrowed; closing it stays with the caller.
type Runner struct {
	provider *goose.Provider
}

// NewRunner builds a runner over dir, or over the migrations compiled into the
// binary when dir is empty.
func NewRunner(db *sql.DB, dir string) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	fsys, err := sourceFS(dir)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

func sourceFS(dir string) (fs.FS, error) {
	if strings.TrimSpace(dir) == "" {
		return fs.Sub(embedded, "migrations")
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("migrations dir %q is not readable", dir)
	}
	return os.DirFS(dir), nil
}

// Apply runs one of the up/down/redo/status commands.
func (r *Runner) Apply(ctx context.Context, command string) ([]Step, error) {
	switch command {
	case CommandUp:
		results, err := r.provider.Up(ctx)
		if err != nil {
			return nil, fmt.Errorf("goose up: %w", err)
		}
		return stepsFromResults(results), nil
	case CommandDown:
		res, err := r.provider.Down(ctx)
		if errors.Is(err, goose.ErrNoNextVersion) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("goose down: %w", err)
		}
		return stepsFromResults([]*goose.MigrationResult{res}), nil
	case CommandRedo:
		return r.redo(ctx)
	case CommandStatus:
		return r.status(ctx)
	}
	return nil, fmt.Errorf("unsupported migration command %q", command)
}

func (r *Runner) redo(ctx context.Context) ([]Step, error) {
	down, err := r.provider.Down(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose redo: rolling back: %w", err)
	}
	up, err := r.provider.UpTo(ctx, down.Source.Version)
	if err != nil {
		return nil, fmt.Errorf("goose redo: reapplying %d: %w", down.Source.Version, err)
	}
	return stepsFromResults(append([]*goose.MigrationResult{down}, up...)), nil
}

func (r *Runner) status(ctx context.Context) ([]Step, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	steps := make([]Step, 0, len(statuses))
	for _, st := range statuses {
		steps = append(steps, Step{
			Version:   st.Source.Version,
			File:      filepath.Base(st.Source.Path),
			State:     string(st.State),
			AppliedAt: st.AppliedAt,
		})
	}
	return steps, nil
}

// MigrateTo moves the schema up or down until it sits at target.
func (r *Runner) MigrateTo(ctx context.Context, target int64) ([]Step, error) {
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}
	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil, nil
	case current < target:
		results, err = r.provider.UpTo(ctx, target)
	default:
		results, err = r.provider.DownTo(ctx, target)
	}
	if err != nil {
		return nil, fmt.Errorf("migrate %d -> %d: %w", current, target, err)
	}
	return stepsFromResults(results), nil
}

// ParseVersion reads a YYYYMMDDHHMMSS migration version.
func ParseVersion(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("version is required")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || len(raw) != 14 {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	return v, nil
}

func stepsFromResults(results []*goose.MigrationResult) []Step {
	steps := make([]Step, 0, len(results))
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		steps = append(steps, Step{
			Version: res.Source.Version,
			File:    filepath.Base(res.Source.Path),
			State:   res.Direction,
			Took:    res.Duration,
		})
	}
	return steps
}
