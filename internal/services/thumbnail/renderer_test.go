package thumbnail

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/modelibr/modelibr/internal/pkg/xerr"
)

func TestCommandRenderer_SubstitutesPlaceholders(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test relies on cp")
	}

	input := filepath.Join(t.TempDir(), "input.obj")
	content := []byte("fake png bytes")
	if err := os.WriteFile(input, content, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	renderer := NewCommandRenderer("cp {input} {output}")
	data, err := renderer.Render(context.Background(), input)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if string(data) != string(content) {
		t.Errorf("rendered bytes = %q, want %q", data, content)
	}
}

func TestCommandRenderer_FailsWithoutCommand(t *testing.T) {
	renderer := NewCommandRenderer("")
	_, err := renderer.Render(context.Background(), "whatever.obj")
	if !errors.Is(err, xerr.ErrRenderError) {
		t.Errorf("error = %v, want ErrRenderError", err)
	}
}

func TestCommandRenderer_WrapsCommandFailure(t *testing.T) {
	renderer := NewCommandRenderer("false {input} {output}")
	_, err := renderer.Render(context.Background(), "whatever.obj")
	if !errors.Is(err, xerr.ErrRenderError) {
		t.Errorf("error = %v, want ErrRenderError", err)
	}
}
