package render_test

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/matzehuels/diagrender/pkg/cache"
	"github.com/matzehuels/diagrender/pkg/config"
	"github.com/matzehuels/diagrender/pkg/document"
	"github.com/matzehuels/diagrender/pkg/errors"
	"github.com/matzehuels/diagrender/pkg/render"
	"github.com/matzehuels/diagrender/pkg/render/rendertest"
)

// fakeBackend renders with the imaginary tool "faketool". The "count"
// attribute turns it into a multi-output backend.
type fakeBackend struct{}

func (fakeBackend) Name() string      { return "fake" }
func (fakeBackend) Classes() []string { return []string{"fake", "fk"} }

func (fakeBackend) Configure(r *config.Resolver, b *document.CodeBlock) (render.Job, error) {
	img := render.ResolveImage(r, "png")
	if err := render.CheckFormat("fake", img.Format, []string{"png", "svg"}); err != nil {
		return nil, err
	}
	count, _ := strconv.Atoi(r.Attr("count"))
	return &fakeJob{
		img:   img,
		text:  b.Text,
		count: count,
		raw:   b.Format == "latex",
		show:  r.Flag("show"),
	}, nil
}

type fakeJob struct {
	img   render.Image
	text  string
	count int
	raw   bool
	show  bool
}

func (j *fakeJob) Image() render.Image { return j.img }
func (j *fakeJob) Material() []string  { return nil }
func (j *fakeJob) Multi() bool         { return j.count > 0 }

func (j *fakeJob) Passthrough() (string, bool) {
	return render.RawMarkup("latex", j.text), j.raw
}

func (j *fakeJob) ShowSource() (string, bool) { return "text", j.show }

func (j *fakeJob) Prepare(ws *render.Workspace) error {
	return ws.WriteFile("input.txt", []byte(j.text))
}

func (j *fakeJob) Invoke(ctx context.Context, ws *render.Workspace, x render.Executor) error {
	return x.Run(ctx, render.Command{
		Name: "faketool",
		Args: []string{"input.txt", j.img.Format, strconv.Itoa(j.count)},
		Dir:  ws.Dir,
	})
}

func (j *fakeJob) Collect(ws *render.Workspace, out render.Output) ([]string, error) {
	if j.count == 0 {
		return out.Publish("faketool", ws.Path("out."+j.img.Format))
	}
	var srcs []string
	for i := 1; i <= j.count; i++ {
		srcs = append(srcs, ws.Path("figure-"+strconv.Itoa(i)+"."+j.img.Format))
	}
	return out.PublishSequence("faketool", srcs)
}

// fakeTool writes the files faketool would produce.
func fakeTool(c render.Command) error {
	format, count := c.Args[1], c.Args[2]
	n, _ := strconv.Atoi(count)
	if n == 0 {
		return rendertest.WriteFile(c, "out."+format, []byte("image"))
	}
	for i := 1; i <= n; i++ {
		if err := rendertest.WriteFile(c, "figure-"+strconv.Itoa(i)+"."+format, []byte("figure")); err != nil {
			return err
		}
	}
	return nil
}

func newRunner(h func(render.Command) error) (*render.Runner, *rendertest.Executor) {
	x := &rendertest.Executor{Handler: h}
	return render.NewRunner(render.NewRegistry(fakeBackend{}), x, nil), x
}

func block(text string, classes []string, attrs ...string) *document.CodeBlock {
	b := &document.CodeBlock{Text: text, Classes: classes, Format: "html"}
	for i := 0; i+1 < len(attrs); i += 2 {
		b.Attributes = append(b.Attributes, document.Attribute{Key: attrs[i], Value: attrs[i+1]})
	}
	return b
}

func TestRenderCachesByIdentity(t *testing.T) {
	dir := t.TempDir()
	runner, x := newRunner(fakeTool)
	b := block("a -> b", []string{"fake"}, "folder", dir, "caption", "Graph")

	first, err := runner.Render(context.Background(), b, nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if first.Cached {
		t.Error("first render should not be cached")
	}
	want := filepath.Join(dir, string(first.Identity)+".png")
	if len(first.Paths) != 1 || first.Paths[0] != want {
		t.Fatalf("Paths = %v, want [%s]", first.Paths, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("cache file missing: %v", err)
	}

	second, err := runner.Render(context.Background(), b, nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !second.Cached {
		t.Error("second render should be cached")
	}
	if second.Markup != first.Markup {
		t.Errorf("Markup = %q, want %q", second.Markup, first.Markup)
	}
	if got := x.Count(); got != 1 {
		t.Errorf("executor calls = %d, want 1", got)
	}
	if wantMarkup := "![Graph](" + want + "){.fake}"; first.Markup != wantMarkup {
		t.Errorf("Markup = %q, want %q", first.Markup, wantMarkup)
	}
}

func TestRenderRefresh(t *testing.T) {
	dir := t.TempDir()
	runner, x := newRunner(fakeTool)
	runner.Refresh = true
	b := block("a -> b", []string{"fake"}, "folder", dir)

	for i := 0; i < 2; i++ {
		res, err := runner.Render(context.Background(), b, nil)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if res.Cached {
			t.Error("Refresh render reported a cache hit")
		}
	}
	if got := x.Count(); got != 2 {
		t.Errorf("executor calls = %d, want 2", got)
	}
}

func TestRenderNoBackend(t *testing.T) {
	runner, x := newRunner(fakeTool)

	_, err := runner.Render(context.Background(), block("print(1)", []string{"python"}), nil)
	if !stderrors.Is(err, render.ErrNoBackend) {
		t.Errorf("Render() error = %v, want ErrNoBackend", err)
	}
	if !errors.Is(err, errors.ErrCodeUnknownBackend) {
		t.Errorf("GetCode() = %v, want %v", errors.GetCode(err), errors.ErrCodeUnknownBackend)
	}
	if x.Count() != 0 {
		t.Error("executor was called for an unknown block")
	}
}

func TestRenderInvalidFormat(t *testing.T) {
	runner, _ := newRunner(fakeTool)

	_, err := runner.Render(context.Background(), block("x", []string{"fake"}, "format", "tiff"), nil)
	if !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("Render() error = %v, want %v", err, errors.ErrCodeInvalidFormat)
	}
}

func TestRenderPrecedence(t *testing.T) {
	dir := t.TempDir()
	runner, _ := newRunner(fakeTool)
	runner.Defaults = document.Metadata{"fake-image-format": "svg", "fake-image-folder": dir}

	tests := []struct {
		name  string
		attrs []string
		meta  document.Metadata
		want  string
	}{
		{"config default", nil, nil, ".svg"},
		{"metadata", nil, document.Metadata{"fake-image-format": "png"}, ".png"},
		{"attribute", []string{"format", "svg"}, document.Metadata{"fake-image-format": "png"}, ".svg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := runner.Render(context.Background(), block("p", []string{"fake"}, tt.attrs...), tt.meta)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if got := filepath.Ext(res.Paths[0]); got != tt.want {
				t.Errorf("ext = %q, want %q", got, tt.want)
			}
			if filepath.Dir(res.Paths[0]) != dir {
				t.Errorf("folder = %q, want %q", filepath.Dir(res.Paths[0]), dir)
			}
		})
	}
}

func TestRenderPassthrough(t *testing.T) {
	runner, x := newRunner(fakeTool)
	b := block(`\draw (0,0) -- (1,1);`, []string{"fake"})
	b.Format = "latex"

	res, err := runner.Render(context.Background(), b, nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !res.Passthrough || res.Identity != "" || len(res.Paths) != 0 {
		t.Errorf("Result = %+v, want passthrough without images", res)
	}
	if want := "```{=latex}\n" + b.Text + "\n```"; res.Markup != want {
		t.Errorf("Markup = %q, want %q", res.Markup, want)
	}
	if x.Count() != 0 {
		t.Errorf("executor calls = %d, want 0", x.Count())
	}
}

func TestRenderMultiOutput(t *testing.T) {
	dir := t.TempDir()
	runner, x := newRunner(fakeTool)
	b := block("plots", []string{"fk"}, "folder", dir, "count", "3", "width", "50%")

	res, err := runner.Render(context.Background(), b, nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(res.Paths) != 3 {
		t.Fatalf("Paths = %v, want 3 images", res.Paths)
	}
	for i, p := range res.Paths {
		want := filepath.Join(dir, string(res.Identity)+strconv.Itoa(i+1)+".png")
		if p != want {
			t.Errorf("Paths[%d] = %q, want %q", i, p, want)
		}
	}
	if lines := strings.Split(res.Markup, "\n"); len(lines) != 3 || !strings.HasSuffix(lines[0], "{.fake width=50%}") {
		t.Errorf("Markup = %q", res.Markup)
	}

	// Removing the second image leaves only the contiguous prefix.
	if err := os.Remove(res.Paths[1]); err != nil {
		t.Fatal(err)
	}
	again, err := runner.Render(context.Background(), b, nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !again.Cached || len(again.Paths) != 1 {
		t.Errorf("cached Paths = %v (cached=%v), want the first image only", again.Paths, again.Cached)
	}
	if x.Count() != 1 {
		t.Errorf("executor calls = %d, want 1", x.Count())
	}
}

func TestRenderMultiOutputPartialPublish(t *testing.T) {
	dir := t.TempDir()
	runner, x := newRunner(fakeTool)
	b := block("plots", []string{"fake"}, "folder", dir, "count", "3")
	store := cache.NewStore(dir)
	id := cache.NewIdentity(b.Text)

	// A directory in the way of the second image makes its publish fail.
	blocker := store.SequencePath(id, 2, "png")
	if err := os.Mkdir(blocker, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := runner.Render(context.Background(), b, nil); !errors.Is(err, errors.ErrCodeFilesystem) {
		t.Fatalf("Render() error = %v, want FILESYSTEM", err)
	}
	for _, n := range []int{1, 3} {
		if p := store.SequencePath(id, n, "png"); store.Exists(p) {
			t.Errorf("%s left behind by failed publish", filepath.Base(p))
		}
	}

	if err := os.Remove(blocker); err != nil {
		t.Fatal(err)
	}
	res, err := runner.Render(context.Background(), b, nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if res.Cached || len(res.Paths) != 3 {
		t.Errorf("Paths = %v (cached=%v), want 3 fresh images", res.Paths, res.Cached)
	}
	if x.Count() != 2 {
		t.Errorf("executor calls = %d, want 2", x.Count())
	}
}

func TestRenderMultiOutputDropsStaleImages(t *testing.T) {
	dir := t.TempDir()
	runner, _ := newRunner(fakeTool)
	store := cache.NewStore(dir)
	id := cache.NewIdentity("plots")

	stale := store.SequencePath(id, 3, "png")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := runner.Render(context.Background(), block("plots", []string{"fake"}, "folder", dir, "count", "2"), nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(res.Paths) != 2 {
		t.Errorf("Paths = %v, want 2 images", res.Paths)
	}
	if store.Exists(stale) {
		t.Error("stale third image survived a two-image render")
	}
}

func TestRenderShowSource(t *testing.T) {
	runner, _ := newRunner(fakeTool)
	b := block("source", []string{"fake", "show"}, "folder", t.TempDir())

	res, err := runner.Render(context.Background(), b, nil)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.HasPrefix(res.Markup, "```text\nsource\n```\n\n![](") {
		t.Errorf("Markup = %q, want source echo before the image", res.Markup)
	}
}

func TestRenderFailureCleansUp(t *testing.T) {
	dir := t.TempDir()
	var workspace string
	boom := errors.New(errors.ErrCodeToolFailed, "faketool exited with status 1")
	runner, _ := newRunner(func(c render.Command) error {
		workspace = c.Dir
		return boom
	})

	res, err := runner.Render(context.Background(), block("bad", []string{"fake"}, "folder", dir), nil)
	if err != boom {
		t.Fatalf("Render() = %v, %v; want %v", res, err, boom)
	}
	if workspace == "" {
		t.Fatal("executor was not called")
	}
	if _, err := os.Stat(workspace); !os.IsNotExist(err) {
		t.Errorf("workspace %s still exists", workspace)
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("cache folder has %d entries after failure, want 0", len(entries))
	}
}

func TestRenderNoOutput(t *testing.T) {
	runner, _ := newRunner(func(render.Command) error { return nil })

	_, err := runner.Render(context.Background(), block("x", []string{"fake"}, "folder", t.TempDir()), nil)
	if !errors.Is(err, errors.ErrCodeToolFailed) {
		t.Errorf("Render() error = %v, want %v", err, errors.ErrCodeToolFailed)
	}
}

func TestRenderConcurrentSameIdentity(t *testing.T) {
	dir := t.TempDir()
	runner, x := newRunner(fakeTool)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := runner.Render(context.Background(), block("same", []string{"fake"}, "folder", dir), nil); err != nil {
				t.Errorf("Render() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := x.Count(); got != 1 {
		t.Errorf("executor calls = %d, want 1", got)
	}
}
