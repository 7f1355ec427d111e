package scaffold

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/scaffoldkit/scaffoldkit/internal/errs"
	"github.com/scaffoldkit/scaffoldkit/internal/manifest"
)

// Renderer turns a template plus context overrides into a project directory
// under outputDir.
type Renderer interface {
	Render(ctx context.Context, templatePath string, overrides map[string]string, outputDir string) (*Result, error)
}

// HookFunc runs inside the freshly rendered project, after every file has
// been written. A hook error fails the generation and the project directory
// is removed.
type HookFunc func(ctx context.Context, res *Result) error

// Result holds the outcome of a generation.
type Result struct {
	ProjectDir string
	Manifest   *manifest.TemplateManifest
	Context    Context
	Files      []string // project-relative, slash separated, in walk order
}

// Generator is the default Renderer.
type Generator struct {
	// Hooks run in order after rendering.
	Hooks []HookFunc
	// WorkDir receives clones of remote templates; empty means os.TempDir.
	WorkDir string
}

// NewGenerator creates a Generator running the given post-generation hooks.
func NewGenerator(hooks ...HookFunc) *Generator {
	return &Generator{Hooks: hooks}
}

// Render generates one project. It never prompts: every variable comes from
// the manifest defaults or overrides.
func (g *Generator) Render(ctx context.Context, templatePath string, overrides map[string]string, outputDir string) (*Result, error) {
	templateDir, release, err := FetchTemplate(ctx, ParseTemplateRef(templatePath), g.WorkDir)
	if err != nil {
		return nil, err
	}
	defer release()

	m, err := manifest.LoadTemplate(templateDir)
	if err != nil {
		return nil, err
	}

	pctx, err := ResolveContext(m, overrides)
	if err != nil {
		return nil, err
	}

	srcRoot, err := projectTemplateDir(templateDir)
	if err != nil {
		return nil, err
	}

	name, err := pctx.Expand(filepath.Base(srcRoot))
	if err != nil {
		return nil, errs.Wrap(errs.EGenerate, "rendering project directory name", err)
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, errs.Newf(errs.EGenerate, "project directory name %q is not a single path segment", name)
	}

	projectDir := filepath.Join(outputDir, name)

	// Check for existing files to prevent accidental overwrites.
	if existing, err := os.ReadDir(projectDir); err == nil && len(existing) > 0 {
		return nil, errs.Newf(errs.EGenerate, "output directory %s is not empty; remove existing files first", projectDir)
	}
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		return nil, errs.Wrap(errs.EGenerate, "creating project directory", err)
	}

	success := false
	defer func() {
		if !success {
			_ = os.RemoveAll(projectDir)
		}
	}()

	result := &Result{
		ProjectDir: projectDir,
		Manifest:   m,
		Context:    pctx,
	}

	r := &treeRenderer{
		ctx:       pctx,
		exclude:   newMatcher(m.Exclude),
		verbatim:  newMatcher(m.CopyWithoutRender),
		srcRoot:   srcRoot,
		dstRoot:   projectDir,
		collected: &result.Files,
	}
	if err := filepath.WalkDir(srcRoot, r.visit); err != nil {
		return nil, errs.Wrap(errs.EGenerate, "rendering template", err)
	}

	for _, hook := range g.Hooks {
		if err := hook(ctx, result); err != nil {
			if errs.GetCode(err) == "" {
				err = errs.Wrap(errs.EGenerate, "post-generation hook", err)
			}
			return nil, err
		}
	}

	success = true
	return result, nil
}

// projectTemplateDir finds the single templated directory at the template root.
func projectTemplateDir(templateDir string) (string, error) {
	entries, err := os.ReadDir(templateDir)
	if err != nil {
		return "", errs.Wrap(errs.EGenerate, "reading template directory", err)
	}
	var found []string
	for _, e := range entries {
		if e.IsDir() && strings.Contains(e.Name(), "{{") {
			found = append(found, e.Name())
		}
	}
	if len(found) != 1 {
		return "", errs.Newf(errs.EGenerate,
			"template %s must contain exactly one templated directory, found %d", templateDir, len(found))
	}
	return filepath.Join(templateDir, found[0]), nil
}

type treeRenderer struct {
	ctx       Context
	exclude   gitignore.Matcher
	verbatim  gitignore.Matcher
	srcRoot   string
	dstRoot   string
	collected *[]string
}

func (r *treeRenderer) visit(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return err
	}
	if path == r.srcRoot {
		return nil
	}

	rel, err := filepath.Rel(r.srcRoot, path)
	if err != nil {
		return err
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")

	if r.exclude.Match(segments, d.IsDir()) {
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}

	// A segment that renders to "" drops the entry, which lets templates
	// guard optional files with {{ if }}.
	rendered := make([]string, len(segments))
	for i, seg := range segments {
		out, err := r.ctx.Expand(seg)
		if err != nil {
			return fmt.Errorf("rendering path %s: %w", rel, err)
		}
		if strings.TrimSpace(out) == "" {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rendered[i] = out
	}
	dst := filepath.Join(append([]string{r.dstRoot}, rendered...)...)

	if d.IsDir() {
		return os.MkdirAll(dst, 0755)
	}
	if !d.Type().IsRegular() {
		// Symlinks and special files are not part of a template.
		return nil
	}

	info, err := d.Info()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading template %s: %w", rel, err)
	}

	if !r.verbatim.Match(segments, false) {
		content, err = r.renderContent(rel, content)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(dst, content, info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	*r.collected = append(*r.collected, strings.Join(rendered, "/"))
	return nil
}

func (r *treeRenderer) renderContent(name string, content []byte) ([]byte, error) {
	if !bytes.Contains(content, []byte("{{")) {
		return content, nil
	}
	tmpl, err := template.New(name).Funcs(FuncMap()).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, r.ctx.values); err != nil {
		return nil, fmt.Errorf("executing template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func newMatcher(patterns []string) gitignore.Matcher {
	ps := make([]gitignore.Pattern, 0, len(patterns))
	for _, p := range patterns {
		ps = append(ps, gitignore.ParsePattern(p, nil))
	}
	return gitignore.NewMatcher(ps)
}
