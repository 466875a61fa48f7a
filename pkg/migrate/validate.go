package migrate

import (
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// Validate checks every .sql file in fsys: a YYYYMMDDHHMMSS_name.sql name, a
// unique version, both goose sections with Up before Down, and balanced
// StatementBegin/StatementEnd pairs.
func Validate(fsys fs.FS) error {
	versions, err := listVersions(fsys)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return fmt.Errorf("no migrations found")
	}
	for _, v := range versions {
		b, err := fs.ReadFile(fsys, v.name)
		if err != nil {
			return fmt.Errorf("read %q: %w", v.name, err)
		}
		if err := checkSections(string(b)); err != nil {
			return fmt.Errorf("migration %q: %w", v.name, err)
		}
	}
	return nil
}

// ValidateDir validates the migrations on disk under dir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return Validate(Source(dir))
}

type migrationFile struct {
	version int64
	name    string
}

func listVersions(fsys fs.FS) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	seen := map[int64]string{}
	var out []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", e.Name())
		}
		version, _ := strconv.ParseInt(m[1], 10, 64)
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("duplicate migration version %d in %q and %q", version, prev, e.Name())
		}
		seen[version] = e.Name()
		out = append(out, migrationFile{version: version, name: e.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func checkSections(sql string) error {
	up := strings.Index(sql, "-- +goose Up")
	down := strings.Index(sql, "-- +goose Down")
	switch {
	case up < 0:
		return fmt.Errorf(`missing "-- +goose Up"`)
	case down < 0:
		return fmt.Errorf(`missing "-- +goose Down"`)
	case down < up:
		return fmt.Errorf(`"-- +goose Down" appears before "-- +goose Up"`)
	}
	if begins, ends := strings.Count(sql, "-- +goose StatementBegin"), strings.Count(sql, "-- +goose StatementEnd"); begins != ends {
		return fmt.Errorf("%d StatementBegin markers but %d StatementEnd", begins, ends)
	}
	return nil
}
