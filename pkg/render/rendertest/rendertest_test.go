package rendertest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/diagrender/pkg/render"
)

func TestExecutorRecords(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")

	x := &Executor{Handler: func(c render.Command) error {
		if c.Name == "fail" {
			return boom
		}
		return WriteFile(c, "out.txt", c.Stdin)
	}}

	if err := x.Run(context.Background(), render.Command{Name: "ok", Dir: dir, Stdin: []byte("hi")}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := x.Run(context.Background(), render.Command{Name: "fail"}); err != boom {
		t.Errorf("Run(fail) error = %v, want %v", err, boom)
	}

	if got := x.Count(); got != 2 {
		t.Errorf("Count() = %d, want 2", got)
	}
	if got := x.Calls()[0].Name; got != "ok" {
		t.Errorf("Calls()[0].Name = %q, want ok", got)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil || string(data) != "hi" {
		t.Errorf("out.txt = %q, %v; want hi", data, err)
	}
}

func TestExecutorCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	x := &Executor{}
	if err := x.Run(ctx, render.Command{Name: "dot"}); err == nil {
		t.Error("Run() with canceled context should fail")
	}
}
