package provision

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/scaffoldkit/scaffoldkit/internal/errs"
)

// extract unpacks archivePath into destDir. Every write goes through an
// os.Root on destDir, so no entry or symlink chain can place a file
// outside it.
func extract(ctx context.Context, archivePath, format, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errs.Wrap(errs.EExtract, "creating extraction directory", err)
	}
	root, err := os.OpenRoot(destDir)
	if err != nil {
		return errs.Wrap(errs.EExtract, "opening extraction directory", err)
	}
	defer root.Close()

	switch format {
	case FormatZip:
		return extractZip(ctx, archivePath, root)
	case FormatTarGz:
		return extractTarGz(ctx, archivePath, root)
	default:
		return errs.Newf(errs.EExtract, "unsupported archive format %q", format)
	}
}

func extractZip(ctx context.Context, archivePath string, root *os.Root) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return errs.Wrap(errs.EExtract, "opening zip archive", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return ctxErr(ctx, errs.EExtract, "extracting archive", err)
		}
		name, err := entryName(f.Name)
		if err != nil {
			return err
		}
		if name == "" {
			continue
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := root.MkdirAll(name, 0o755); err != nil {
				return escapeOr(err, name, "creating directory")
			}
		case mode&os.ModeSymlink != 0:
			rc, err := f.Open()
			if err != nil {
				return errs.Wrap(errs.EExtract, "opening zip entry "+f.Name, err)
			}
			link, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return errs.Wrap(errs.EExtract, "reading zip entry "+f.Name, err)
			}
			if err := writeSymlink(root, name, string(link)); err != nil {
				return err
			}
		case mode.IsRegular():
			rc, err := f.Open()
			if err != nil {
				return errs.Wrap(errs.EExtract, "opening zip entry "+f.Name, err)
			}
			err = writeFile(root, name, rc, mode.Perm())
			rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func extractTarGz(ctx context.Context, archivePath string, root *os.Root) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return errs.Wrap(errs.EExtract, "opening archive", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return errs.Wrap(errs.EExtract, "creating gzip reader", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return ctxErr(ctx, errs.EExtract, "extracting archive", err)
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errs.Wrap(errs.EExtract, "reading tar entry", err)
		}
		name, err := entryName(hdr.Name)
		if err != nil {
			return err
		}
		if name == "" {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := root.MkdirAll(name, 0o755); err != nil {
				return escapeOr(err, name, "creating directory")
			}
		case tar.TypeSymlink:
			if err := writeSymlink(root, name, hdr.Linkname); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(root, name, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		}
		// GitHub archives carry a pax global header holding the commit id;
		// it and other special entries are skipped.
	}
	return nil
}

// entryName cleans an archive entry name, refusing absolute names and
// names that climb out of the archive. It returns "" for the archive root
// itself.
func entryName(name string) (string, error) {
	name = strings.TrimSuffix(filepath.FromSlash(name), string(filepath.Separator))
	if name == "" || name == "." {
		return "", nil
	}
	if filepath.IsAbs(name) || !filepath.IsLocal(name) {
		return "", escapeError(name, "")
	}
	return filepath.Clean(name), nil
}

func writeFile(root *os.Root, name string, r io.Reader, perm os.FileMode) error {
	if err := mkdirParent(root, name); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	out, err := root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o200)
	if err != nil {
		return escapeOr(err, name, "extracting "+name)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return errs.Wrap(errs.EExtract, "extracting "+name, err)
	}
	if err := out.Close(); err != nil {
		return errs.Wrap(errs.EExtract, "extracting "+name, err)
	}
	return nil
}

// writeSymlink creates name -> link. The link must be relative, may only
// climb with leading ".." segments, and those must stay inside root when
// counted from the real location of name's parent. Links that pass this
// can only point at or below a directory inside root, so chains of them
// cannot escape.
func writeSymlink(root *os.Root, name, link string) error {
	target := filepath.FromSlash(link)
	if target == "" || filepath.IsAbs(target) || !leadingUpsOnly(target) {
		return escapeError(name, link)
	}
	if err := mkdirParent(root, name); err != nil {
		return err
	}

	rootDir, err := filepath.EvalSymlinks(root.Name())
	if err != nil {
		return errs.Wrap(errs.EExtract, "resolving extraction directory", err)
	}
	parent, err := filepath.EvalSymlinks(filepath.Join(root.Name(), filepath.Dir(name)))
	if err != nil {
		return errs.Wrap(errs.EExtract, "resolving "+name, err)
	}
	rel, err := filepath.Rel(rootDir, filepath.Join(parent, target))
	if err != nil || !filepath.IsLocal(rel) {
		return escapeError(name, link)
	}

	if err := root.Symlink(target, name); err != nil {
		return escapeOr(err, name, "creating symlink")
	}
	return nil
}

// leadingUpsOnly reports whether ".." appears only before every other
// segment of p, as in "../../include/x.h" but not "a/../../x".
func leadingUpsOnly(p string) bool {
	climbing := true
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		switch part {
		case "..":
			if !climbing {
				return false
			}
		case "", ".":
		default:
			climbing = false
		}
	}
	return true
}

func mkdirParent(root *os.Root, name string) error {
	dir := filepath.Dir(name)
	if dir == "." {
		return nil
	}
	if err := root.MkdirAll(dir, 0o755); err != nil {
		return escapeOr(err, name, "creating directory")
	}
	return nil
}

func escapeError(entry, link string) error {
	details := map[string]string{"entry": entry}
	if link != "" {
		details["link"] = link
	}
	return errs.WrapWithDetails(errs.EExtract, "archive entry escapes extraction directory", nil, details)
}

// escapeOr maps an os.Root containment failure to the escape error and
// anything else to a plain extraction error.
func escapeOr(err error, name, msg string) error {
	if isEscape(err) {
		return errs.WrapWithDetails(errs.EExtract, "archive entry escapes extraction directory", err,
			map[string]string{"entry": name})
	}
	return errs.Wrap(errs.EExtract, msg, err)
}

func isEscape(err error) bool {
	return err != nil && strings.Contains(err.Error(), "path escapes from parent")
}

// locate returns the directory to install: <root>/<subdir> inside
// extractDir. A missing root or subdir is a layout mismatch, reported with
// the top-level names that were actually found.
func locate(extractDir string, src Source) (string, error) {
	root := filepath.Join(extractDir, src.Root)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return "", errs.WrapWithDetails(errs.ELayoutMismatch,
			fmt.Sprintf("archive has no top-level directory %q", src.Root), nil,
			map[string]string{"expected": src.Root, "found": strings.Join(topLevel(extractDir), ", "), "url": src.URL})
	}

	if src.Subdir == "" || src.Subdir == "." {
		return root, nil
	}
	subtree := filepath.Join(root, filepath.FromSlash(src.Subdir))
	info, err = os.Stat(subtree)
	if err != nil || !info.IsDir() {
		return "", errs.WrapWithDetails(errs.ELayoutMismatch,
			fmt.Sprintf("archive has no directory %q under %q", src.Subdir, src.Root), nil,
			map[string]string{"expected": src.Root + "/" + src.Subdir, "url": src.URL})
	}
	return subtree, nil
}

func topLevel(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}
