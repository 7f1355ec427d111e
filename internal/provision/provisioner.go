package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/scaffoldkit/scaffoldkit/internal/errs"
)

// Provisioner fetches one dependency and installs its subtree.
type Provisioner struct {
	dep        Dependency
	httpClient *http.Client
	mirror     string
	progress   io.Writer
	tempRoot   string
	timeout    time.Duration
	pinned     map[string]string
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provisioner) {
		p.httpClient = c
	}
}

// WithMirror replaces the repository base URL when building archive URLs.
func WithMirror(mirror string) Option {
	return func(p *Provisioner) {
		p.mirror = mirror
	}
}

// WithDependency selects the dependency to provision.
func WithDependency(dep Dependency) Option {
	return func(p *Provisioner) {
		p.dep = dep.withDefaults()
	}
}

// WithProgress sends status lines and the download meter to w.
func WithProgress(w io.Writer) Option {
	return func(p *Provisioner) {
		p.progress = w
	}
}

// WithTempRoot places the staging directory under dir instead of next to
// the destination.
func WithTempRoot(dir string) Option {
	return func(p *Provisioner) {
		p.tempRoot = dir
	}
}

// WithTimeout bounds a whole Provision call, download included.
func WithTimeout(d time.Duration) Option {
	return func(p *Provisioner) {
		p.timeout = d
	}
}

// WithPinnedVersion makes Hook install version for the dependency called
// name, ignoring the version the template context names for it. Other
// dependencies keep their context versions.
func WithPinnedVersion(name, version string) Option {
	return func(p *Provisioner) {
		if p.pinned == nil {
			p.pinned = make(map[string]string)
		}
		p.pinned[name] = version
	}
}

// New creates a Provisioner for GoogleTest unless WithDependency says
// otherwise.
func New(opts ...Option) *Provisioner {
	p := &Provisioner{
		dep:        GoogleTest(),
		httpClient: http.DefaultClient,
		progress:   io.Discard,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dependency returns the dependency this provisioner installs.
func (p *Provisioner) Dependency() Dependency {
	return p.dep
}

// For returns a copy of p that provisions dep with the same transport,
// mirror and staging settings.
func (p *Provisioner) For(dep Dependency) *Provisioner {
	cp := *p
	cp.dep = dep.withDefaults()
	return &cp
}

// Resolve maps version to its archive source for this provisioner.
func (p *Provisioner) Resolve(version string) (Source, error) {
	return Resolve(p.dep, version, p.mirror)
}

// Provision fetches the archive for version and makes destination contain
// exactly the dependency subtree.
//
// The archive is fully downloaded before extraction starts. On any error
// the destination is left as it was before the call and the staging
// directory is removed.
func (p *Provisioner) Provision(ctx context.Context, version, destination string) error {
	src, err := p.Resolve(version)
	if err != nil {
		return err
	}
	if destination == "" {
		return errs.New(errs.EUsage, "destination must not be empty")
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	staging, err := p.stagingDir(destination)
	if err != nil {
		return err
	}
	defer os.RemoveAll(staging)

	fmt.Fprintf(p.progress, "Fetching %s %s\n", p.dep.Name, describe(src, p.dep.Branch))

	archivePath := filepath.Join(staging, "archive."+src.Format)
	if err := p.download(ctx, src.URL, archivePath); err != nil {
		return err
	}
	if p.dep.SHA256 != "" {
		if err := verifyChecksum(archivePath, p.dep.SHA256); err != nil {
			return err
		}
	}

	extractDir := filepath.Join(staging, "extract")
	if err := extract(ctx, archivePath, src.Format, extractDir); err != nil {
		return err
	}

	subtree, err := locate(extractDir, src)
	if err != nil {
		return err
	}

	if err := install(subtree, destination); err != nil {
		return err
	}
	fmt.Fprintf(p.progress, "Installed %s into %s\n", p.dep.Name, destination)
	return nil
}

// stagingDir creates the per-call work area. By default it sits next to
// destination so the final rename never crosses filesystems.
func (p *Provisioner) stagingDir(destination string) (string, error) {
	if p.tempRoot != "" {
		dir, err := os.MkdirTemp(p.tempRoot, "scaffoldkit-provision-*")
		if err != nil {
			return "", errs.Wrap(errs.EInstall, "creating staging directory", err)
		}
		return dir, nil
	}
	parent := filepath.Dir(destination)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", errs.Wrap(errs.EInstall, "creating destination parent", err)
	}
	dir, err := os.MkdirTemp(parent, "."+filepath.Base(destination)+".staging-*")
	if err != nil {
		return "", errs.Wrap(errs.EInstall, "creating staging directory", err)
	}
	return dir, nil
}

func describe(src Source, branch string) string {
	switch {
	case src.Version == Latest:
		return "(latest, branch " + branch + ")"
	case IsRelease(src.Version):
		return "release " + src.Version
	default:
		return "tag " + src.Version
	}
}

// ctxErr maps a context failure during a step to E_TIMEOUT when the
// deadline expired, otherwise to code.
func ctxErr(ctx context.Context, code errs.Code, msg string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.ETimeout, msg, err)
	}
	return errs.Wrap(code, msg, err)
}
