package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/diagrender/pkg/document"
	"github.com/matzehuels/diagrender/pkg/errors"
	"github.com/matzehuels/diagrender/pkg/observability"
	"github.com/matzehuels/diagrender/pkg/pipeline"
)

const digraph = "digraph { a -> b }"

// testEnv runs CLI commands against a configuration that renders dot blocks
// in-process into a temporary image folder.
type testEnv struct {
	dir    string
	images string
	config string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	captureUI(t)
	t.Cleanup(observability.Reset)

	dir := t.TempDir()
	env := &testEnv{
		dir:    dir,
		images: filepath.Join(dir, "img"),
		config: filepath.Join(dir, "config.toml"),
	}
	cfg := "timeout = \"30s\"\n\n[metadata]\ndot-path = \"builtin\"\ndot-image-format = \"svg\"\ndot-image-folder = \"" + filepath.ToSlash(env.images) + "\"\n"
	if err := os.WriteFile(env.config, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return env
}

func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	c := New(&bytes.Buffer{}, LogInfo)
	root := c.RootCommand()

	var out bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--config", e.config}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseAttributes(t *testing.T) {
	attrs, err := parseAttributes([]string{"format=svg", "show", "caption=a=b"})
	if err != nil {
		t.Fatalf("parseAttributes() error: %v", err)
	}
	want := document.Attributes{
		{Key: "format", Value: "svg"},
		{Key: "show", Value: ""},
		{Key: "caption", Value: "a=b"},
	}
	if len(attrs) != len(want) {
		t.Fatalf("parseAttributes() = %v, want %v", attrs, want)
	}
	for i := range want {
		if attrs[i] != want[i] {
			t.Errorf("attrs[%d] = %v, want %v", i, attrs[i], want[i])
		}
	}

	if _, err := parseAttributes([]string{"=svg"}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("parseAttributes(=svg) error = %v, want INVALID_INPUT", err)
	}
}

func TestParseMetadata(t *testing.T) {
	meta, err := parseMetadata([]string{"dot-image-format=png", "tikz-packages=a,b", "dot-image-format=svg"})
	if err != nil {
		t.Fatalf("parseMetadata() error: %v", err)
	}
	if got, _ := meta.String("dot-image-format"); got != "svg" {
		t.Errorf("dot-image-format = %q, want later value svg", got)
	}
	if got, _ := meta.String("tikz-packages"); got != "a,b" {
		t.Errorf("tikz-packages = %q, want a,b", got)
	}
}

func TestBlockCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, digraph+"\n", "block", "--lang", "dot", "-a", "caption=Flow")
	if err != nil {
		t.Fatalf("block error: %v", err)
	}
	if !strings.HasPrefix(out, "![Flow](") || !strings.Contains(out, ".svg){.dot}") {
		t.Errorf("block output = %q, want image markup", out)
	}

	entries, err := os.ReadDir(env.images)
	if err != nil || len(entries) != 1 {
		t.Fatalf("image folder = %v, %v; want one image", entries, err)
	}
}

func TestBlockCommandJSON(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, digraph, "block", "--lang", "dot", "--json")
	if err != nil {
		t.Fatalf("block error: %v", err)
	}
	for _, want := range []string{`"backend": "dot"`, `"identity": "`, `"cached": false`} {
		if !strings.Contains(out, want) {
			t.Errorf("JSON output missing %s:\n%s", want, out)
		}
	}

	out, err = env.run(t, digraph, "block", "--lang", "dot", "--json")
	if err != nil {
		t.Fatalf("second block error: %v", err)
	}
	if !strings.Contains(out, `"cached": true`) {
		t.Errorf("second render should be cached:\n%s", out)
	}
}

func TestBlockCommandUnknownLanguage(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "print(1)", "block", "--lang", "python")
	if !errors.Is(err, errors.ErrCodeUnknownBackend) {
		t.Fatalf("error = %v, want UNKNOWN_BACKEND", err)
	}
	if !strings.Contains(errors.UserMessage(err), "diagrender backends") {
		t.Errorf("message = %q, want a hint", errors.UserMessage(err))
	}
}

func TestRenderCommand(t *testing.T) {
	env := newTestEnv(t)
	input := filepath.Join(env.dir, "notes.md")
	output := filepath.Join(env.dir, "notes.out.md")
	doc := "# Notes\n\n```dot\n" + digraph + "\n```\n\n```python\nprint(1)\n```\n"
	if err := os.WriteFile(input, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := env.run(t, "", "render", input, "-o", output); err != nil {
		t.Fatalf("render error: %v", err)
	}

	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	s := string(got)
	if strings.Contains(s, "```dot") {
		t.Errorf("dot block was not replaced:\n%s", s)
	}
	if !strings.Contains(s, ".svg){.dot}") || !strings.Contains(s, "```python\nprint(1)\n```") {
		t.Errorf("unexpected output:\n%s", s)
	}
}

func TestRenderCommandStdout(t *testing.T) {
	env := newTestEnv(t)
	doc := "```dot\n" + digraph + "\n```\n"

	out, err := env.run(t, doc, "render")
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if !strings.Contains(out, "![](") {
		t.Errorf("stdout = %q, want rendered document", out)
	}
}

func TestRenderCommandKeepGoing(t *testing.T) {
	env := newTestEnv(t)
	doc := "```{.dot format=tiff}\n" + digraph + "\n```\n\n```dot\n" + digraph + "\n```\n"

	_, err := env.run(t, doc, "render")
	if !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Fatalf("fail-fast error = %v, want INVALID_FORMAT", err)
	}

	out, err := env.run(t, doc, "render", "--keep-going")
	if !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Fatalf("keep-going error = %v, want INVALID_FORMAT", err)
	}
	if !strings.Contains(out, "format=tiff") || !strings.Contains(out, ".svg){.dot}") {
		t.Errorf("keep-going output should keep the failing block and render the other:\n%s", out)
	}
}

func TestFailuresError(t *testing.T) {
	if err := failuresError(nil); err != nil {
		t.Errorf("failuresError(nil) = %v", err)
	}
	err := failuresError([]pipeline.Failure{
		{Index: 0, Line: 3, Err: errors.New(errors.ErrCodeToolFailed, "dot exited with status 1")},
		{Index: 2, Line: 9, Err: errors.New(errors.ErrCodeTimeout, "timed out")},
	})
	if !errors.Is(err, errors.ErrCodeToolFailed) || !strings.Contains(err.Error(), "2 block(s)") {
		t.Errorf("failuresError() = %v", err)
	}
}

func TestCacheListAndClear(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.run(t, digraph, "block", "--lang", "dot"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(env.images, "README.txt"), []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := env.run(t, "", "cache", "list")
	if err != nil {
		t.Fatalf("cache list error: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 1 || !strings.Contains(lines[0], ".svg") {
		t.Errorf("cache list = %q, want one svg entry", out)
	}

	if _, err := env.run(t, "", "cache", "clear", env.images); err != nil {
		t.Fatalf("cache clear error: %v", err)
	}
	entries, _ := os.ReadDir(env.images)
	if len(entries) != 1 || entries[0].Name() != "README.txt" {
		t.Errorf("after clear = %v, want only README.txt", entries)
	}
}

func TestCacheFoldersFromConfig(t *testing.T) {
	env := newTestEnv(t)
	c := New(&bytes.Buffer{}, LogInfo)
	c.configPath = env.config

	folders, err := c.cacheFolders(nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 1 || folders[0] != filepath.ToSlash(env.images) {
		t.Errorf("cacheFolders() = %v, want [%s]", folders, env.images)
	}

	folders, _ = c.cacheFolders([]string{"a", "b"})
	if len(folders) != 2 {
		t.Errorf("cacheFolders(args) = %v, want args", folders)
	}
}

func TestBackendsCommand(t *testing.T) {
	env := newTestEnv(t)
	buf := captureUI(t)

	old := lookPath
	lookPath = func(file string) (string, error) {
		if file == "python3" {
			return "/usr/bin/python3", nil
		}
		return "", os.ErrNotExist
	}
	t.Cleanup(func() { lookPath = old })

	if _, err := env.run(t, "", "backends"); err != nil {
		t.Fatalf("backends error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"mermaid", "mmd", "/usr/bin/python3", "builtin renderer", "tools missing"} {
		if !strings.Contains(out, want) {
			t.Errorf("backends output missing %q:\n%s", want, out)
		}
	}
}
