package preview

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ivlev/talkreel/internal/logging"
	"github.com/ivlev/talkreel/internal/model"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatcherReloadsProject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "talk.yaml")
	if err := model.WriteProject(testProject(), path); err != nil {
		t.Fatal(err)
	}
	initial, err := model.ReadProject(path)
	if err != nil {
		t.Fatal(err)
	}

	store := NewStore(initial)
	w, err := NewWatcher(path, store, logging.Discard())
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	reloaded := make(chan *model.Project, 4)
	w.OnReload(func(p *model.Project) { reloaded <- p })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// unrelated files in the directory are ignored
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	edited := testProject()
	edited.Captions = append(edited.Captions, model.Caption{
		TimeInterval: model.TimeInterval{ID: "c2", Start: 2, End: 3},
		Text:         "second line",
	})
	if err := model.WriteProject(edited, path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "reload", func() bool { return len(store.Project().Captions) == 2 })

	select {
	case p := <-reloaded:
		if p == nil {
			t.Error("nil project passed to OnReload")
		}
	case <-time.After(time.Second):
		t.Error("OnReload was not called")
	}

	// a broken write keeps the last good project
	if err := os.WriteFile(path, []byte("captions: [\n"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if got := len(store.Project().Captions); got != 2 {
		t.Errorf("invalid file must not replace the project, got %d captions", got)
	}
}
