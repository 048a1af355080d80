package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
)

// Files returns a Checker that passes while every path is a readable regular
// file. Empty paths are skipped.
func Files(name string, paths ...string) Checker {
	return FilesFunc(name, func() []string { return paths })
}

// FilesFunc is like [Files] but asks paths for the list on every check, so
// the list can follow a reloaded config.
func FilesFunc(name string, paths func() []string) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			var errs []error
			for _, p := range paths() {
				if err := ctx.Err(); err != nil {
					return err
				}
				if p == "" {
					continue
				}
				fi, err := os.Stat(p)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				if !fi.Mode().IsRegular() {
					errs = append(errs, fmt.Errorf("%s is not a regular file", p))
				}
			}
			return errors.Join(errs...)
		},
	}
}

// Flag returns a Checker that passes while ready is true. The caller flips
// it once startup work such as model loading has finished.
func Flag(name string, ready *atomic.Bool) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if !ready.Load() {
				return errors.New("not ready")
			}
			return nil
		},
	}
}
