package provision

import (
	"fmt"
	"path"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/scaffoldkit/scaffoldkit/internal/branding"
	"github.com/scaffoldkit/scaffoldkit/internal/errs"
)

// Latest is the version sentinel selecting the tip of the dependency's
// default branch instead of a release tag.
const Latest = "latest"

// Archive formats understood by the extractor.
const (
	FormatZip   = "zip"
	FormatTarGz = "tar.gz"
)

// Dependency describes where a dependency's archives live and which part of
// the archive is installed.
type Dependency struct {
	Name   string // e.g., "googletest"
	Repo   string // e.g., "https://github.com/google/googletest"
	Branch string // branch fetched for Latest, default "main"
	Subdir string // subtree inside the archive root; "" or "." installs the root
	SHA256 string // optional pin on the archive bytes
	Format string // FormatZip (default) or FormatTarGz
}

// GoogleTest returns the default dependency.
func GoogleTest() Dependency {
	return Dependency{
		Name:   "googletest",
		Repo:   branding.DefaultDependencyRepo(),
		Branch: "main",
		Subdir: "googletest",
		Format: FormatZip,
	}
}

func (d Dependency) withDefaults() Dependency {
	if d.Repo == "" {
		d.Repo = branding.DefaultDependencyRepo()
	}
	if d.Name == "" {
		d.Name = repoName(d.Repo)
	}
	if d.Branch == "" {
		d.Branch = "main"
	}
	if d.Format == "" {
		d.Format = FormatZip
	}
	return d
}

// Source is a resolved version: the URL to fetch and the directory the
// archive is expected to unpack into.
type Source struct {
	Version string
	URL     string
	Root    string // top-level directory inside the archive
	Subdir  string // path under Root that gets installed
	Format  string
}

// Resolve maps a version to exactly one archive URL and its in-archive root.
//
// GitHub names the archive root "<repo>-<ref>", but the ref is spelled
// differently per kind: a branch keeps its name, a tag of the form
// v<semver> loses the leading "v", other tags (release-1.8.0) are kept
// verbatim. mirror, when set, replaces the repository base URL.
func Resolve(dep Dependency, version, mirror string) (Source, error) {
	dep = dep.withDefaults()
	version = strings.TrimSpace(version)
	if version == "" {
		return Source{}, errs.New(errs.EUsage, "dependency version must not be empty")
	}
	if strings.ContainsAny(version, " \t/\\") || strings.Contains(version, "..") {
		return Source{}, errs.Newf(errs.EUsage, "invalid dependency version %q", version)
	}

	base := strings.TrimRight(dep.Repo, "/")
	if mirror != "" {
		base = strings.TrimRight(mirror, "/")
	}
	base = strings.TrimSuffix(base, ".git")
	name := repoName(dep.Repo)
	ext := "." + dep.Format

	src := Source{
		Version: version,
		Subdir:  dep.Subdir,
		Format:  dep.Format,
	}
	if version == Latest {
		src.URL = fmt.Sprintf("%s/archive/refs/heads/%s%s", base, dep.Branch, ext)
		src.Root = name + "-" + dep.Branch
		return src, nil
	}

	src.URL = fmt.Sprintf("%s/archive/refs/tags/%s%s", base, version, ext)
	src.Root = name + "-" + archiveRef(version)
	return src, nil
}

// archiveRef returns how GitHub spells a tag in the archive root name.
func archiveRef(tag string) string {
	if strings.HasPrefix(tag, "v") {
		if _, err := semver.StrictNewVersion(strings.TrimPrefix(tag, "v")); err == nil {
			return strings.TrimPrefix(tag, "v")
		}
	}
	return tag
}

// IsRelease reports whether version names a release tag that parses as a
// semantic version (with or without a "v" prefix or "release-" prefix).
func IsRelease(version string) bool {
	v := strings.TrimPrefix(strings.TrimPrefix(version, "release-"), "v")
	_, err := semver.NewVersion(v)
	return version != Latest && err == nil
}

func repoName(repo string) string {
	return strings.TrimSuffix(path.Base(strings.TrimRight(repo, "/")), ".git")
}
