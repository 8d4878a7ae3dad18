package uploads

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// RefLister reports every image reference still in use.
type RefLister interface {
	ImageRefs(ctx context.Context) (map[string]bool, error)
}

// sweepPattern matches names produced by Save.
const sweepPattern = "service-*"

// Sweep removes stored images that no service references and that are older
// than minAge. It returns the number of files removed.
func (s *Store) Sweep(ctx context.Context, refs RefLister, minAge time.Duration) (int, error) {
	inUse, err := refs.ImageRefs(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing image references: %w", err)
	}

	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return 0, fmt.Errorf("reading upload directory: %w", err)
	}

	cutoff := s.now().Add(-minAge)
	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if e.IsDir() {
			continue
		}
		if ok, _ := doublestar.Match(sweepPattern, e.Name()); !ok {
			continue
		}
		if inUse[s.cfg.URLPrefix+e.Name()] {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.cfg.Dir, e.Name())); err != nil && !os.IsNotExist(err) {
			zap.L().Warn("sweeping orphan image", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
