package supervisor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pithecene-io/thence/config"
)

// provisionWorktree materializes the configured [[worktree.provision.files]]
// entries into a freshly created worktree directory: symlink by default,
// copy when mode=copy, and only a missing required=true source fails the
// claim.
func provisionWorktree(worktree string, files []config.ProvisionFile) error {
	if err := os.MkdirAll(worktree, 0o755); err != nil {
		return fmt.Errorf("provision worktree %s: %w", worktree, err)
	}

	for _, f := range files {
		dest := filepath.Join(worktree, f.To)
		if _, err := os.Stat(f.From); err != nil {
			if os.IsNotExist(err) && !f.IsRequired() {
				continue
			}
			return fmt.Errorf("provision %s -> %s: %w", f.From, f.To, err)
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("provision %s -> %s: %w", f.From, f.To, err)
		}

		switch f.EffectiveMode() {
		case config.ProvisionCopy:
			if err := copyFile(f.From, dest); err != nil {
				return fmt.Errorf("provision %s -> %s: %w", f.From, f.To, err)
			}
		default:
			_ = os.Remove(dest)
			if err := os.Symlink(f.From, dest); err != nil {
				return fmt.Errorf("provision %s -> %s: %w", f.From, f.To, err)
			}
		}
	}
	return nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
