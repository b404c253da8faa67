package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"catalog/internal/layout"
	"catalog/internal/pkg/errors"
)

func writePNG(t *testing.T, path string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 0x1e, G: 0x83, B: 0xcc, A: 0xff})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write png: %v", err)
	}
	return buf.Bytes()
}

func TestLibraryLoad(t *testing.T) {
	dir := t.TempDir()
	want := writePNG(t, filepath.Join(dir, layout.LogoAsset))
	lib := NewLibrary(dir)

	a, err := lib.Load(layout.LogoAsset)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if a.Type != "PNG" || !bytes.Equal(a.Data, want) {
		t.Errorf("unexpected asset %s/%s", a.Name, a.Type)
	}

	// Served from cache once the file is gone.
	if err := os.Remove(filepath.Join(dir, layout.LogoAsset)); err != nil {
		t.Fatal(err)
	}
	if _, err := lib.Load(layout.LogoAsset); err != nil {
		t.Errorf("expected cached asset, got %v", err)
	}
}

func TestLibraryErrors(t *testing.T) {
	lib := NewLibrary(t.TempDir())

	if _, err := lib.Load("plant.png"); !errors.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := lib.Load("icon.svg"); !errors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if err := lib.Check("plant.png"); err == nil {
		t.Error("expected Check to fail for a missing icon")
	}
}

func TestLibraryPathStaysInDir(t *testing.T) {
	lib := NewLibrary("/srv/assets")
	if got := lib.Path("../../etc/passwd.png"); got != "/srv/assets/passwd.png" {
		t.Errorf("Path() = %s", got)
	}
}
