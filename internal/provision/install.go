package provision

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/scaffoldkit/scaffoldkit/internal/errs"
)

// install makes destination an exact copy of subtree. An existing
// destination is moved aside first and restored if the move-in fails.
func install(subtree, destination string) error {
	parent := filepath.Dir(destination)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return errs.Wrap(errs.EInstall, "creating destination parent", err)
	}

	var backup string
	if _, err := os.Lstat(destination); err == nil {
		aside, err := os.MkdirTemp(parent, "."+filepath.Base(destination)+".old-*")
		if err != nil {
			return errs.Wrap(errs.EInstall, "creating backup directory", err)
		}
		defer os.RemoveAll(aside)

		backup = filepath.Join(aside, filepath.Base(destination))
		if err := rename(destination, backup); err != nil {
			return errs.Wrap(errs.EInstall, "moving existing destination aside", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return errs.Wrap(errs.EInstall, "inspecting destination", err)
	}

	if err := moveDir(subtree, destination); err != nil {
		_ = os.RemoveAll(destination)
		if backup != "" {
			if rbErr := rename(backup, destination); rbErr != nil {
				return errs.WrapWithDetails(errs.EInstall, "installing dependency failed and rollback failed", err,
					map[string]string{"rollback_error": rbErr.Error(), "backup": backup})
			}
		}
		return errs.Wrap(errs.EInstall, "installing dependency into "+destination, err)
	}
	return nil
}

// rename is os.Rename; tests swap it to observe or fail moves.
var rename = os.Rename

// moveDir renames src onto dst. When the two are on different filesystems
// src is first copied into a sibling of dst and then renamed, so dst never
// holds a partial tree.
func moveDir(src, dst string) error {
	err := rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	tmp, err := os.MkdirTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".copy-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	copied := filepath.Join(tmp, filepath.Base(dst))
	if err := copyDir(src, copied); err != nil {
		return err
	}
	return rename(copied, dst)
}

// copyDir recursively copies src to dst, keeping file modes and
// relative symlinks.
func copyDir(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, srcInfo.Mode().Perm()); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		switch {
		case entry.IsDir():
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
		case entry.Type()&os.ModeSymlink != 0:
			link, err := os.Readlink(srcPath)
			if err != nil {
				return err
			}
			if err := os.Symlink(link, dstPath); err != nil {
				return err
			}
		case entry.Type().IsRegular():
			if err := copyFile(srcPath, dstPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
