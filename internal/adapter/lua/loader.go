package lua

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dshills/switchboard/internal/adapter"
)

// Discover finds scripted adapters in the immediate subdirectories of each
// path. Missing paths are skipped. Invalid manifests are reported in the
// returned error while valid ones are still returned, sorted by id. When
// two directories declare the same id the first path wins.
func Discover(paths ...string) ([]*Manifest, error) {
	found := make(map[string]*Manifest)
	var errs []error

	for _, base := range paths {
		entries, err := os.ReadDir(base)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			errs = append(errs, err)
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(base, entry.Name())
			if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err != nil {
				continue
			}

			m, err := LoadManifest(dir)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if _, dup := found[m.ID]; dup {
				continue
			}
			found[m.ID] = m
		}
	}

	manifests := make([]*Manifest, 0, len(found))
	for _, m := range found {
		manifests = append(manifests, m)
	}
	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].ID < manifests[j].ID
	})

	return manifests, errors.Join(errs...)
}

// Register adds a constructor for every manifest to table. Each build
// produces a fresh interpreter.
func Register(table *adapter.Table, manifests []*Manifest, opts ...StateOption) error {
	var errs []error
	for _, m := range manifests {
		err := table.Register(m.ID, func() (adapter.Adapter, error) {
			if _, err := os.Stat(m.MainPath()); err != nil {
				return nil, fmt.Errorf("script %s: %w", m.ID, err)
			}
			return New(m, opts...), nil
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
