package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

var requiredMarkers = []string{"-- +goose Up", "-- +goose Down"}

// ValidateDir checks filenames and goose markers of the migrations in dir. An
// empty dir validates the embedded set. Every problem found is reported.
func ValidateDir(dir string) error {
	fsys, err := sourceFS(dir)
	if err != nil {
		return err
	}
	return validateFS(fsys)
}

func validateFS(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	if len(names) == 0 {
		return errors.New("no migrations found")
	}

	var problems []error
	versions := make(map[string]string, len(names))
	for _, name := range names {
		m := sqlFileRe.FindStringSubmatch(name)
		if m == nil {
			problems = append(problems, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name))
			continue
		}
		if prev, dup := versions[m[1]]; dup {
			problems = append(problems, fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name))
			continue
		}
		versions[m[1]] = name
		problems = append(problems, checkMarkers(fsys, name)...)
	}
	return errors.Join(problems...)
}

func checkMarkers(fsys fs.FS, name string) []error {
	body, err := fs.ReadFile(fsys, name)
	if err != nil {
		return []error{fmt.Errorf("read %q: %w", name, err)}
	}
	var missing []error
	for _, marker := range requiredMarkers {
		if !strings.Contains(string(body), marker) {
			missing = append(missing, fmt.Errorf("migration %q missing %q", name, marker))
		}
	}
	return missing
}
