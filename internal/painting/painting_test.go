package painting

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"gfres/internal/apperr"
	"gfres/internal/config"
	"gfres/internal/imaging"
	"gfres/internal/state"
)

type memoryStore struct{}

func (memoryStore) Load(ctx context.Context) (*state.Snapshot, error) { return state.NewSnapshot(), nil }
func (memoryStore) Save(ctx context.Context, s *state.Snapshot) error  { return nil }
func (memoryStore) Close(ctx context.Context) error                    { return nil }

func writeUniform(t *testing.T, path string, c color.Color) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	if err := imaging.SavePNG(path, img); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestMaskName(t *testing.T) {
	if got := MaskName("pic_ak47_HD.png"); got != "pic_ak47_HD_Alpha.png" {
		t.Fatalf("expected pic_ak47_HD_Alpha.png, got %q", got)
	}
}

func TestStageRun(t *testing.T) {
	if testing.Short() {
		t.Skip("composites full size paintings")
	}
	ctx := context.Background()
	root := t.TempDir()
	cfg := config.StageConfig{Input: filepath.Join(root, "in"), ResourcePath: filepath.Join(root, "out")}

	writeUniform(t, filepath.Join(cfg.Input, "ak47", "pic_ak47_HD.png"), color.NRGBA{R: 200, G: 10, B: 20, A: 255})
	writeUniform(t, filepath.Join(cfg.Input, "ak47", "pic_ak47_HD_Alpha.png"), color.NRGBA{A: 100})
	writeUniform(t, filepath.Join(cfg.Input, "m4a1", "pic_m4a1_HD.png"), color.NRGBA{A: 255})
	os.WriteFile(filepath.Join(cfg.Input, "m4a1", "notes.txt"), []byte("x"), 0o644)

	cache, _ := state.Open(ctx, memoryStore{}, state.Options{})
	result, err := New(cfg, cache, nil, 2).Run(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Processed != 1 || len(result.Errors) != 1 {
		t.Fatalf("unexpected result: %#v", result)
	}
	if !errors.Is(result.Errors[0], apperr.ErrMissingAsset) {
		t.Fatalf("expected missing mask error, got %v", result.Errors[0])
	}

	out, err := imaging.LoadPNG(filepath.Join(cfg.ResourcePath, "ak47", "pic_ak47_HD.png"))
	if err != nil {
		t.Fatalf("loading output: %v", err)
	}
	if out.Bounds().Dx() != imaging.PaintingSize || out.Bounds().Dy() != imaging.PaintingSize {
		t.Fatalf("expected %d square output, got %v", imaging.PaintingSize, out.Bounds())
	}
	want := color.NRGBA{R: 200, G: 10, B: 20, A: 100}
	for _, p := range []image.Point{{0, 0}, {2047, 2047}, {1024, 1024}} {
		if got := color.NRGBAModel.Convert(out.At(p.X, p.Y)); got != want {
			t.Fatalf("pixel %v: expected %v, got %v", p, want, got)
		}
	}

	if !cache.Paintings().Has("ak47") {
		t.Fatalf("expected ak47 recorded")
	}
	if cache.Paintings().Has("m4a1") {
		t.Fatalf("expected folder with missing mask not recorded")
	}
	if _, err := os.Stat(filepath.Join(cfg.ResourcePath, "ak47", "pic_ak47_HD_Alpha.png")); !os.IsNotExist(err) {
		t.Fatalf("expected mask not copied to output")
	}

	writeUniform(t, filepath.Join(cfg.Input, "m4a1", "pic_m4a1_HD_Alpha.png"), color.NRGBA{A: 255})
	result, err = New(cfg, cache, nil, 2).Run(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Processed != 1 || result.Unchanged != 1 || len(result.Errors) != 0 {
		t.Fatalf("expected only m4a1 processed, got %#v", result)
	}
}
