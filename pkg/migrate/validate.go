package migrate

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

// Validate checks the embedded migrations.
func Validate() error {
	return ValidateFS(embedded, DefaultDir)
}

// ValidateFS checks that every .sql file in dir is named
// <timestamp>_<snake_name>.sql with a unique timestamp and carries both goose
// annotations. All problems are reported together.
func ValidateFS(fsys fs.FS, dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	files, err := fs.Glob(fsys, path.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("list %q: %w", dir, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no migrations found in %q", dir)
	}

	var problems []error
	owners := make(map[string]string, len(files))
	for _, file := range files {
		name := path.Base(file)
		version, err := parseVersion(name)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		if prev, dup := owners[version]; dup {
			problems = append(problems, fmt.Errorf("version %s used by both %q and %q", version, prev, name))
			continue
		}
		owners[version] = name

		if err := checkAnnotations(fsys, file); err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(problems...)
}

func parseVersion(name string) (string, error) {
	stem, ok := strings.CutSuffix(name, ".sql")
	version, label, found := strings.Cut(stem, "_")
	if !ok || !found || label == "" || strings.Trim(label, "abcdefghijklmnopqrstuvwxyz0123456789_") != "" {
		return "", fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
	}
	if _, err := time.Parse(versionLayout, version); err != nil {
		return "", fmt.Errorf("invalid migration version in %q: %w", name, err)
	}
	return version, nil
}

func checkAnnotations(fsys fs.FS, file string) error {
	f, err := fsys.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	var up, down bool
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "-- +goose Up":
			up = true
		case "-- +goose Down":
			down = down || up
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	switch {
	case !up:
		return errors.New(`missing "-- +goose Up"`)
	case !down:
		return errors.New(`missing "-- +goose Down" after the Up section`)
	}
	return nil
}
