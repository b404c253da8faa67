// Package render turns a layout.Document into the flattened PDF that is
// mailed to the requester: the document is written with fpdf, every page is
// rasterized with pdftoppm and the page images are reassembled into a new
// PDF with pdfcpu.
package render

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"catalog/internal/layout"
	"catalog/internal/pkg/errors"
	"catalog/internal/pkg/logger"
)

const (
	dirPDF       = "pdf"
	dirPages     = "pages"
	dirFlattened = "flattened"

	fontRegular = "Roboto-Regular.ttf"
	fontBold    = "Roboto-Medium.ttf"
)

// Config locates the scratch directories and external tools.
type Config struct {
	ArtifactRoot string
	// FontDir holds the Roboto TTFs. Empty selects the core Helvetica font.
	FontDir string
	// Scale multiplies the 72 DPI base resolution used for rasterization.
	Scale    float64
	Pdftoppm string
}

// Output lists the files produced by Run.
type Output struct {
	Original  string
	Pages     []string
	Flattened string
}

// Renderer runs the three rendering stages.
type Renderer struct {
	cfg    Config
	runner Runner
	log    *logger.Logger
}

func New(cfg Config, runner Runner, log *logger.Logger) *Renderer {
	if cfg.Scale <= 0 {
		cfg.Scale = 3
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if runner == nil {
		runner = ExecRunner{Log: log}
	}
	api.DisableConfigDir()
	return &Renderer{cfg: cfg, runner: runner, log: log.WithComponent("render")}
}

// Prepare creates the artifact directories.
func (r *Renderer) Prepare() error {
	for _, d := range []string{dirPDF, dirPages, dirFlattened} {
		if err := os.MkdirAll(filepath.Join(r.cfg.ArtifactRoot, d), 0o755); err != nil {
			return errors.Wrap(err, "render.Prepare", "create artifact directory")
		}
	}
	return nil
}

// Run renders, rasterizes and reassembles doc. Every file written, even by
// a stage that later fails, is recorded in arts.
func (r *Renderer) Run(ctx context.Context, doc *layout.Document, base string, arts *Artifacts) (Output, error) {
	var out Output

	original, err := r.Render(ctx, doc, base, arts)
	if err != nil {
		return out, err
	}
	out.Original = original

	pages, err := r.Rasterize(ctx, original, base, arts)
	if err != nil {
		return out, err
	}
	out.Pages = pages

	flattened, err := r.Reassemble(ctx, pages, base, arts)
	if err != nil {
		return out, err
	}
	out.Flattened = flattened

	r.log.FromContext(ctx).Info("datasheet rendered",
		"original", original,
		"pages", len(pages),
		"flattened", flattened,
	)
	return out, nil
}

// Render writes doc to <root>/pdf/<base>.pdf.
func (r *Renderer) Render(ctx context.Context, doc *layout.Document, base string, arts *Artifacts) (string, error) {
	if doc == nil {
		return "", errors.Render(fmt.Errorf("nil document"), "compile", "no layout to render")
	}
	if err := ctx.Err(); err != nil {
		return "", errors.Render(err, "compile", "render canceled")
	}
	if err := r.checkFonts(); err != nil {
		return "", err
	}
	if err := r.Prepare(); err != nil {
		return "", err
	}

	path := filepath.Join(r.cfg.ArtifactRoot, dirPDF, base+".pdf")
	arts.Add(path)

	pdf, skipped := compile(doc, r.cfg.FontDir)
	if len(skipped) > 0 {
		r.log.FromContext(ctx).Warn("images left out of the document", "images", skipped)
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", errors.Render(err, "compile", "write pdf")
	}
	return path, nil
}

// Rasterize converts every page of pdfPath into a PNG under <root>/pages and
// returns the images in page order.
func (r *Renderer) Rasterize(ctx context.Context, pdfPath, base string, arts *Artifacts) ([]string, error) {
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, errors.Render(err, "rasterize", "source pdf missing")
	}
	if err := r.checkFonts(); err != nil {
		return nil, err
	}

	count, err := api.PageCountFile(pdfPath)
	if err != nil {
		return nil, errors.Render(err, "rasterize", "read page count")
	}

	prefix := filepath.Join(r.cfg.ArtifactRoot, dirPages, base)
	dpi := int(math.Round(72 * r.cfg.Scale))
	_, stderr, runErr := r.runner.Run(ctx, r.cfg.Pdftoppm, "-r", strconv.Itoa(dpi), "-png", pdfPath, prefix)

	// pdftoppm zero pads page numbers, so lexical order is page order.
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	arts.Add(matches...)

	if runErr != nil {
		msg := strings.TrimSpace(string(stderr))
		return nil, errors.Render(fmt.Errorf("%w: %s", runErr, msg), "rasterize", "pdftoppm failed")
	}
	if len(matches) != count {
		return nil, errors.Render(fmt.Errorf("got %d page images for %d pages", len(matches), count), "rasterize", "incomplete rasterization")
	}
	return matches, nil
}

// Reassemble builds <root>/flattened/<base>.pdf with one page per image.
func (r *Renderer) Reassemble(ctx context.Context, pages []string, base string, arts *Artifacts) (string, error) {
	if len(pages) == 0 {
		return "", errors.Render(fmt.Errorf("no page images"), "reassemble", "nothing to reassemble")
	}
	for _, p := range pages {
		if _, err := os.Stat(p); err != nil {
			return "", errors.Render(err, "reassemble", "page image missing")
		}
	}
	if err := ctx.Err(); err != nil {
		return "", errors.Render(err, "reassemble", "reassemble canceled")
	}

	out := filepath.Join(r.cfg.ArtifactRoot, dirFlattened, base+".pdf")
	arts.Add(out)

	imp := pdfcpu.DefaultImportConfig()
	if err := api.ImportImagesFile(pages, out, imp, model.NewDefaultConfiguration()); err != nil {
		return "", errors.Render(err, "reassemble", "import page images")
	}
	return out, nil
}

func (r *Renderer) checkFonts() error {
	if r.cfg.FontDir == "" {
		return nil
	}
	for _, f := range []string{fontRegular, fontBold} {
		if _, err := os.Stat(filepath.Join(r.cfg.FontDir, f)); err != nil {
			return errors.Render(err, "fonts", "font resources unavailable")
		}
	}
	return nil
}
