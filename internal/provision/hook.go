package provision

import (
	"context"
	"path/filepath"

	"github.com/scaffoldkit/scaffoldkit/internal/errs"
	"github.com/scaffoldkit/scaffoldkit/internal/manifest"
	"github.com/scaffoldkit/scaffoldkit/internal/scaffold"
)

// FromManifest converts a template's dependency entry. Unset fields fall
// back to the GoogleTest defaults.
func FromManifest(d manifest.Dependency) Dependency {
	dep := GoogleTest()
	dep.Name = d.Name
	if d.Repo != "" {
		dep.Repo = d.Repo
	}
	if d.Subdir != "" {
		dep.Subdir = d.Subdir
	}
	dep.SHA256 = d.SHA256
	return dep
}

// Hook returns a post-generation hook that provisions every dependency the
// template declares. The version of each comes from the rendered context
// under the dependency's version_key; the destination is relative to the
// project directory. A version pinned with WithPinnedVersion for a
// dependency's name wins over the context.
func Hook(p *Provisioner) scaffold.HookFunc {
	return func(ctx context.Context, res *scaffold.Result) error {
		if res.Manifest == nil {
			return nil
		}
		for _, d := range res.Manifest.Dependencies {
			version, ok := res.Context.Get(d.VersionKey)
			if pin, pinned := p.pinned[d.Name]; pinned {
				version, ok = pin, true
			}
			if !ok {
				return errs.WrapWithDetails(errs.EInvalidManifest, "dependency version key is not a context variable", nil,
					map[string]string{"dependency": d.Name, "version_key": d.VersionKey})
			}
			rel := filepath.FromSlash(d.Destination)
			if !filepath.IsLocal(rel) {
				return errs.WrapWithDetails(errs.EInvalidManifest, "dependency destination must stay inside the project", nil,
					map[string]string{"dependency": d.Name, "destination": d.Destination})
			}
			if err := p.For(FromManifest(d)).Provision(ctx, version, filepath.Join(res.ProjectDir, rel)); err != nil {
				return err
			}
		}
		return nil
	}
}
