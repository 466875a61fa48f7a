package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/rank0/digimenu-backend/pkg/logger"
)

// DefaultDir is where new migrations are written; the binaries read the copy
// embedded below.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the menu schema migrations compiled into the binary.
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Source picks the embedded migrations for the default dir and the files on
// disk for any other dir.
func Source(dir string) fs.FS {
	if dir == "" || dir == DefaultDir {
		return Embedded()
	}
	return os.DirFS(dir)
}

// Runner applies goose migrations and logs one line per migration touched.
type Runner struct {
	provider *goose.Provider
	logg     *logger.Logger
}

func NewRunner(db *sql.DB, dialect goose.Dialect, fsys fs.FS, logg *logger.Logger) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider, logg: logg}, nil
}

// Run executes up, down, redo or status.
func (r *Runner) Run(ctx context.Context, command string) error {
	switch command {
	case "up":
		results, err := r.provider.Up(ctx)
		r.logResults(ctx, results)
		if err != nil {
			return fmt.Errorf("goose up: %w", err)
		}
	case "down":
		result, err := r.down(ctx)
		if err != nil {
			return err
		}
		if result != nil {
			r.logResults(ctx, []*goose.MigrationResult{result})
		}
	case "redo":
		result, err := r.down(ctx)
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("goose redo: no applied migration to redo")
		}
		again, err := r.provider.UpByOne(ctx)
		r.logResults(ctx, []*goose.MigrationResult{result, again})
		if err != nil {
			return fmt.Errorf("goose redo: %w", err)
		}
	case "status":
		statuses, err := r.provider.Status(ctx)
		if err != nil {
			return fmt.Errorf("goose status: %w", err)
		}
		for _, st := range statuses {
			r.logg.Info(r.logg.WithFields(ctx, map[string]any{
				"version":    st.Source.Version,
				"state":      string(st.State),
				"applied_at": st.AppliedAt,
			}), "migration status")
		}
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	return nil
}

func (r *Runner) down(ctx context.Context) (*goose.MigrationResult, error) {
	result, err := r.provider.Down(ctx)
	if errors.Is(err, goose.ErrNoNextVersion) {
		r.logg.Info(ctx, "no applied migrations to roll back")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("goose down: %w", err)
	}
	return result, nil
}

// To moves the schema up or down to the given YYYYMMDDHHMMSS version.
func (r *Runner) To(ctx context.Context, targetVersion string) error {
	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", targetVersion, err)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	var results []*goose.MigrationResult
	switch {
	case current == target:
		return nil
	case current < target:
		results, err = r.provider.UpTo(ctx, target)
	default:
		results, err = r.provider.DownTo(ctx, target)
	}
	r.logResults(ctx, results)
	if err != nil {
		return fmt.Errorf("goose migrate %d -> %d: %w", current, target, err)
	}
	return nil
}

// Version reports the newest applied migration.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	return r.provider.GetDBVersion(ctx)
}

func (r *Runner) logResults(ctx context.Context, results []*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		fields := r.logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		})
		if res.Error != nil {
			r.logg.Error(fields, "migration failed", res.Error)
			continue
		}
		r.logg.Info(fields, "migration applied")
	}
}
