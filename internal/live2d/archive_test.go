package live2d

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"gfres/internal/apperr"
	"gfres/internal/config"
	"gfres/internal/extractor"
	"gfres/internal/state"
)

type memoryStore struct{ snapshot *state.Snapshot }

func (m *memoryStore) Load(ctx context.Context) (*state.Snapshot, error) {
	if m.snapshot == nil {
		return state.NewSnapshot(), nil
	}
	return m.snapshot, nil
}

func (m *memoryStore) Save(ctx context.Context, snapshot *state.Snapshot) error {
	m.snapshot = snapshot
	return nil
}

func (m *memoryStore) Close(ctx context.Context) error { return nil }

// fakeRunner writes a model directory into the extract output for every
// archive it is asked to extract.
type fakeRunner struct {
	mu       sync.Mutex
	output   string
	model    []byte
	fail     map[string]bool
	silent   map[string]bool
	extracts []string
}

func (f *fakeRunner) Extract(ctx context.Context, dir string) (*extractor.Result, error) {
	code := filepath.Base(dir)
	f.mu.Lock()
	f.extracts = append(f.extracts, code)
	f.mu.Unlock()

	if f.fail[code] {
		return &extractor.Result{ExitCode: 1}, apperr.ExternalTool(code, "extractor failed", errors.New("exit status 1"))
	}
	if _, err := os.Stat(filepath.Join(dir, code+".ab")); err != nil {
		return nil, err
	}
	if f.silent[code] {
		return &extractor.Result{}, nil
	}
	for _, variant := range Variants {
		path := DescriptorPath(filepath.Join(f.output, code), variant)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, f.model, 0o644); err != nil {
			return nil, err
		}
	}
	return &extractor.Result{}, nil
}

func (f *fakeRunner) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.extracts...)
}

func newLive2DConfig(root string) config.Live2DConfig {
	return config.Live2DConfig{
		PackInput:     filepath.Join(root, "drop"),
		PackOutput:    filepath.Join(root, "pack"),
		ExtractOutput: filepath.Join(root, "extracted"),
		ResourcePath:  filepath.Join(root, "resource", "live2d"),
	}
}

func TestArchiveCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		ok   bool
	}{
		{"live2dnewgunAK47.ab", "AK47", true},
		{"live2dnewgunm4sopmod2.ab", "m4sopmod2", true},
		{"live2dnewgun.ab", "", false},
		{"live2dnewgunAK47.ab.bak", "", false},
		{"spineAK47.ab", "", false},
	}
	for _, tt := range tests {
		code, ok := ArchiveCode(tt.name)
		if code != tt.code || ok != tt.ok {
			t.Errorf("ArchiveCode(%q) = %q, %v, want %q, %v", tt.name, code, ok, tt.code, tt.ok)
		}
	}
}

func TestArchiverRun(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	cfg := newLive2DConfig(root)
	os.MkdirAll(cfg.PackInput, 0o755)
	os.WriteFile(filepath.Join(cfg.PackInput, "live2dnewgunAK47.ab"), []byte("UnityFS AK47"), 0o644)
	os.WriteFile(filepath.Join(cfg.PackInput, "readme.txt"), []byte("ignored"), 0o644)

	store := &memoryStore{}
	runner := &fakeRunner{output: cfg.ExtractOutput, model: readFixture(t)}

	cache, err := state.Open(ctx, store, state.Options{})
	if err != nil {
		t.Fatalf("opening cache: %v", err)
	}
	result, err := NewArchiver(cfg, runner, cache, nil, 2).Run(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Extracted != 1 || result.Installed != 1 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result: %#v", result)
	}
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("flushing: %v", err)
	}

	if _, err := os.Stat(filepath.Join(cfg.PackOutput, "AK47", "AK47.ab")); err != nil {
		t.Fatalf("expected archive copy: %v", err)
	}
	installed := DescriptorPath(filepath.Join(cfg.ResourcePath, "ak47"), "normal")
	data, err := os.ReadFile(installed)
	if err != nil {
		t.Fatalf("expected installed model: %v", err)
	}
	if _, changed, _ := NormalizeModel(data); changed {
		t.Fatalf("expected installed model to be normalized")
	}
	if _, err := os.Stat(filepath.Join(cfg.ExtractOutput, "AK47")); !os.IsNotExist(err) {
		t.Fatalf("expected extract output to be moved, got %v", err)
	}

	// Unchanged archive is not extracted again.
	cache, _ = state.Open(ctx, store, state.Options{})
	result, err = NewArchiver(cfg, runner, cache, nil, 2).Run(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Extracted != 0 || result.Unchanged != 1 {
		t.Fatalf("expected archive skipped, got %#v", result)
	}
	if len(runner.calls()) != 1 {
		t.Fatalf("expected one extractor call, got %v", runner.calls())
	}

	// A one byte change triggers re-extraction.
	os.WriteFile(filepath.Join(cfg.PackInput, "live2dnewgunAK47.ab"), []byte("UnityFS AK48"), 0o644)
	result, err = NewArchiver(cfg, runner, cache, nil, 2).Run(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Extracted != 1 {
		t.Fatalf("expected re-extraction, got %#v", result)
	}
}

func TestArchiverSkipsFailedArchive(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	cfg := newLive2DConfig(root)
	os.MkdirAll(cfg.PackInput, 0o755)
	os.WriteFile(filepath.Join(cfg.PackInput, "live2dnewgunAK47.ab"), []byte("a"), 0o644)
	os.WriteFile(filepath.Join(cfg.PackInput, "live2dnewgunM4A1.ab"), []byte("b"), 0o644)

	runner := &fakeRunner{output: cfg.ExtractOutput, model: readFixture(t), fail: map[string]bool{"AK47": true}}
	cache, _ := state.Open(ctx, &memoryStore{}, state.Options{})

	result, err := NewArchiver(cfg, runner, cache, nil, 4).Run(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Extracted != 1 || len(result.Errors) != 1 {
		t.Fatalf("unexpected result: %#v", result)
	}
	if !errors.Is(result.Errors[0], apperr.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", result.Errors[0])
	}
	if !cache.ShouldExtract("live2dnewgunAK47.ab", "0cc175b9c0f1b6a831c399e269772661") {
		t.Fatalf("expected failed archive to stay pending")
	}
	if cache.ShouldExtract("live2dnewgunM4A1.ab", "92eb5ffee6ae2fec3ad71c777531578f") {
		t.Fatalf("expected successful archive recorded")
	}
}

func TestArchiverRequiresExtractorOutput(t *testing.T) {
	ctx := context.Background()
	cfg := newLive2DConfig(t.TempDir())
	os.MkdirAll(cfg.PackInput, 0o755)
	os.WriteFile(filepath.Join(cfg.PackInput, "live2dnewgunAK47.ab"), []byte("a"), 0o644)

	runner := &fakeRunner{output: cfg.ExtractOutput, model: readFixture(t), silent: map[string]bool{"AK47": true}}
	cache, _ := state.Open(ctx, &memoryStore{}, state.Options{})

	result, err := NewArchiver(cfg, runner, cache, nil, 1).Run(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Extracted != 0 || len(result.Errors) != 1 || !errors.Is(result.Errors[0], apperr.ErrExternalTool) {
		t.Fatalf("expected missing output to fail the archive, got %#v", result)
	}
	if !cache.ShouldExtract("live2dnewgunAK47.ab", "0cc175b9c0f1b6a831c399e269772661") {
		t.Fatalf("expected archive to stay pending")
	}
}

func TestInstallSkipsMalformedModel(t *testing.T) {
	root := t.TempDir()
	cfg := newLive2DConfig(root)

	good := filepath.Join(cfg.ExtractOutput, "ak47")
	os.MkdirAll(filepath.Join(good, "normal"), 0o755)
	os.WriteFile(DescriptorPath(good, "normal"), readFixture(t), 0o644)

	bad := filepath.Join(cfg.ExtractOutput, "m4a1")
	os.MkdirAll(filepath.Join(bad, "destroy"), 0o755)
	os.WriteFile(DescriptorPath(bad, "destroy"), []byte("not json"), 0o644)

	cache, _ := state.Open(context.Background(), &memoryStore{}, state.Options{})
	installed, errs := NewArchiver(cfg, nil, cache, nil, 1).Install(context.Background())
	if installed != 1 {
		t.Fatalf("expected one install, got %d", installed)
	}
	if len(errs) != 1 || !errors.Is(errs[0], apperr.ErrMalformedDescriptor) {
		t.Fatalf("expected malformed descriptor error, got %v", errs)
	}
	if _, err := os.Stat(DescriptorPath(filepath.Join(cfg.ResourcePath, "ak47"), "normal")); err != nil {
		t.Fatalf("expected model with missing destroy variant installed: %v", err)
	}
	if _, err := os.Stat(bad); err != nil {
		t.Fatalf("expected malformed model left in place: %v", err)
	}
}
