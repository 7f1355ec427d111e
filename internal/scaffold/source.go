package scaffold

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/scaffoldkit/scaffoldkit/internal/errs"
)

// TemplateRef is a parsed template location: a local directory or a git
// repository with an optional branch/tag after '#'.
type TemplateRef struct {
	Path string // local directory (when not remote)
	URL  string // clone URL (when remote)
	Ref  string // branch or tag, may be empty
}

// Remote reports whether the template has to be cloned.
func (r TemplateRef) Remote() bool {
	return r.URL != ""
}

// ParseTemplateRef classifies s. "gh:owner/repo" is shorthand for the
// GitHub HTTPS URL.
func ParseTemplateRef(s string) TemplateRef {
	base, ref, _ := strings.Cut(s, "#")
	switch {
	case strings.HasPrefix(base, "gh:"):
		return TemplateRef{URL: "https://github.com/" + strings.TrimPrefix(base, "gh:") + ".git", Ref: ref}
	case strings.HasPrefix(base, "https://"), strings.HasPrefix(base, "http://"),
		strings.HasPrefix(base, "ssh://"), strings.HasPrefix(base, "git@"),
		strings.HasPrefix(base, "file://"):
		return TemplateRef{URL: base, Ref: ref}
	default:
		return TemplateRef{Path: s}
	}
}

// FetchTemplate returns a local directory holding the template. Remote
// templates are shallow-cloned into a fresh temp dir under workDir (or the
// system temp dir); the returned release func removes it and must always
// be called.
func FetchTemplate(ctx context.Context, ref TemplateRef, workDir string) (string, func(), error) {
	if !ref.Remote() {
		abs, err := filepath.Abs(ref.Path)
		if err != nil {
			return "", func() {}, errs.Wrap(errs.EGenerate, "resolving template path", err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", func() {}, errs.Wrap(errs.EGenerate, "template not found", err)
		}
		if !info.IsDir() {
			return "", func() {}, errs.Newf(errs.EGenerate, "template %s is not a directory", abs)
		}
		return abs, func() {}, nil
	}

	dir, err := os.MkdirTemp(workDir, "template-*")
	if err != nil {
		return "", func() {}, errs.Wrap(errs.EGenerate, "creating template clone dir", err)
	}
	release := func() { _ = os.RemoveAll(dir) }

	if err := cloneTemplate(ctx, ref, dir); err != nil {
		release()
		return "", func() {}, errs.WrapWithDetails(errs.EGenerate, "cloning template", err,
			map[string]string{"url": ref.URL, "ref": ref.Ref})
	}
	return dir, release, nil
}

func cloneTemplate(ctx context.Context, ref TemplateRef, dir string) error {
	opts := &git.CloneOptions{
		URL:          ref.URL,
		Depth:        1,
		SingleBranch: true,
	}
	if ref.Ref == "" {
		_, err := git.PlainCloneContext(ctx, dir, false, opts)
		return err
	}

	opts.ReferenceName = plumbing.NewBranchReferenceName(ref.Ref)
	_, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err == nil {
		return nil
	}
	if !errors.Is(err, plumbing.ErrReferenceNotFound) && !strings.Contains(err.Error(), "couldn't find remote ref") {
		return err
	}

	// Not a branch; try it as a tag in a clean directory.
	if rmErr := os.RemoveAll(dir); rmErr != nil {
		return rmErr
	}
	if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
		return mkErr
	}
	opts.ReferenceName = plumbing.NewTagReferenceName(ref.Ref)
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		return fmt.Errorf("ref %q is neither a branch nor a tag: %w", ref.Ref, err)
	}
	return nil
}
