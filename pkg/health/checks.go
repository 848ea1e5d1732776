package health

import (
	"context"
	"fmt"
	"os"
)

// DirWritable reports whether a file can be created and removed in dir.
func DirWritable(dir string) CheckFunc {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return fmt.Errorf("%w: %s not writable: %w", ErrCheckFailed, dir, err)
		}
		name := f.Name()
		_ = f.Close()
		if err := os.Remove(name); err != nil {
			return fmt.Errorf("%w: cleanup %s: %w", ErrCheckFailed, name, err)
		}
		return nil
	}
}
