package shell

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rescale/bucketdesk/internal/config"
	"github.com/rescale/bucketdesk/internal/events"
	"github.com/rescale/bucketdesk/internal/ipc"
	"github.com/rescale/bucketdesk/internal/services"
	"github.com/rescale/bucketdesk/internal/storage"
	"github.com/rescale/bucketdesk/internal/vdir"
)

// serve starts the long-lived side on bus with one profile whose provider
// is mem, and returns a correlator for the initiating side.
func serve(t *testing.T, bus *events.EventBus, mem *storage.MemoryProvider) *ipc.Correlator {
	t.Helper()

	cfg := config.NewConfig()
	if err := cfg.AddProfile(config.Profile{Name: "prod", Provider: config.ProviderS3, AccessKey: "a", SecretKey: "b"}); err != nil {
		t.Fatalf("AddProfile failed: %v", err)
	}
	cfg.Current = "prod"

	svc := services.NewAppService(services.AppServiceConfig{
		Config: cfg,
		Factory: func(ctx context.Context, p *config.Profile) (storage.Provider, error) {
			return mem, nil
		},
	})
	reg := ipc.NewRegistry(bus, nil)
	if err := services.Register(reg, svc); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := reg.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(reg.Stop)

	return ipc.NewCorrelator(bus, 2*time.Second)
}

func sampleBucket() *storage.MemoryProvider {
	mem := storage.NewMemoryProvider(1, "cdn.example.com")
	mem.Put("media",
		storage.Object{Key: "a/b/c.txt", Size: 3},
		storage.Object{Key: "a/d/"},
		storage.Object{Key: "readme.md", Size: 12},
	)
	return mem
}

func names(nodes []vdir.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Name())
	}
	return out
}

func TestBucketViewOpenAndNavigate(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()
	view := NewBucketView(serve(t, bus, sampleBucket()), nil)

	if err := view.Open(context.Background(), "media"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if view.Bucket() != "media" {
		t.Errorf("expected bucket media, got %q", view.Bucket())
	}
	if got := names(view.Items()); !reflect.DeepEqual(got, []string{"a", "readme.md"}) {
		t.Errorf("unexpected root items: %v", got)
	}

	if err := view.ChangeDir("a"); err != nil {
		t.Fatalf("ChangeDir(a) failed: %v", err)
	}
	if view.PathPrefix() != "a" {
		t.Errorf("expected prefix a, got %q", view.PathPrefix())
	}
	if err := view.ChangeDir("b"); err != nil {
		t.Fatalf("ChangeDir(b) failed: %v", err)
	}
	if view.PathPrefix() != "a/b" || !reflect.DeepEqual(view.Nav(), []string{"a", "b"}) {
		t.Errorf("unexpected position: prefix=%q nav=%v", view.PathPrefix(), view.Nav())
	}
	if view.TotalItems() != 1 {
		t.Errorf("expected 1 item in a/b, got %d", view.TotalItems())
	}
	if got, err := view.UploadTarget("/home/user/photos/cat.png"); err != nil || got != "a/b/cat.png" {
		t.Errorf("UploadTarget() = %q, %v", got, err)
	}
	if _, err := view.UploadTarget("/"); err == nil {
		t.Error("UploadTarget(\"/\") should fail")
	}

	view.Back()
	view.Back()
	if view.PathPrefix() != "" {
		t.Errorf("expected root after two Back calls, got %q", view.PathPrefix())
	}
	if got, err := view.UploadTarget("cat.png"); err != nil || got != "cat.png" {
		t.Errorf("UploadTarget() at root = %q, %v", got, err)
	}
}

func TestBucketViewLink(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()
	view := NewBucketView(serve(t, bus, sampleBucket()), nil)

	if err := view.Open(context.Background(), "media"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := view.GoTo("a/b"); err != nil {
		t.Fatalf("GoTo failed: %v", err)
	}

	link, err := view.Link("c.txt", false)
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if link != "http://cdn.example.com/a/b/c.txt" {
		t.Errorf("unexpected link: %q", link)
	}

	view.Back()
	if _, err := view.Link("b", false); !errors.Is(err, vdir.ErrNotAFile) {
		t.Errorf("expected ErrNotAFile for folder, got %v", err)
	}
	if _, err := view.Link("missing", false); !errors.Is(err, vdir.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBucketViewKeysWithEmptySegments(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()
	mem := storage.NewMemoryProvider(0, "cdn.example.com")
	mem.Put("media",
		storage.Object{Key: "a//b.txt", Size: 1},
		storage.Object{Key: "a/b.txt", Size: 2},
		storage.Object{Key: "/lead.txt", Size: 3},
	)
	view := NewBucketView(serve(t, bus, mem), nil)
	ctx := context.Background()

	if err := view.Open(ctx, "media"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if skipped := view.Tree().Skipped(); len(skipped) != 0 {
		t.Fatalf("distinct keys were skipped: %v", skipped)
	}

	if err := view.ChangeDir("a"); err != nil {
		t.Fatalf("ChangeDir a failed: %v", err)
	}
	if link, err := view.Link("b.txt", false); err != nil || link != "http://cdn.example.com/a/b.txt" {
		t.Errorf("Link(b.txt) in a = %q, %v", link, err)
	}
	if err := view.ChangeDir(""); err != nil {
		t.Fatalf("ChangeDir into unnamed folder failed: %v", err)
	}
	if link, err := view.Link("b.txt", false); err != nil || link != "http://cdn.example.com/a//b.txt" {
		t.Errorf("Link(b.txt) in a// = %q, %v", link, err)
	}
	if got, err := view.UploadTarget("/tmp/new.txt"); err != nil || got != "a//new.txt" {
		t.Errorf("UploadTarget in a// = %q, %v", got, err)
	}

	if err := view.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := view.Tree().FolderKey(); got != "a//" {
		t.Errorf("Refresh moved the cursor to %q, want a//", got)
	}

	if link, err := view.LinkKey("/lead.txt", false); err != nil || link != "http://cdn.example.com//lead.txt" {
		t.Errorf("LinkKey(/lead.txt) = %q, %v", link, err)
	}
	if _, err := view.LinkKey("a//", false); !errors.Is(err, vdir.ErrNotAFile) {
		t.Errorf("LinkKey on a folder marker: err = %v, want ErrNotAFile", err)
	}
}

func TestBucketViewOpenFailureKeepsTree(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()
	view := NewBucketView(serve(t, bus, sampleBucket()), nil)
	ctx := context.Background()

	if err := view.Open(ctx, "media"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := view.ChangeDir("a"); err != nil {
		t.Fatalf("ChangeDir failed: %v", err)
	}

	err := view.Open(ctx, "missing")
	var callErr *ipc.CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("expected CallError, got %v", err)
	}
	if callErr.Message != "bucket missing does not exist" {
		t.Errorf("handler message not surfaced verbatim: %q", callErr.Message)
	}
	if view.Bucket() != "media" || view.PathPrefix() != "a" {
		t.Errorf("failed Open changed state: bucket=%q prefix=%q", view.Bucket(), view.PathPrefix())
	}
}

func TestBucketViewRefreshKeepsFolder(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()
	mem := sampleBucket()
	view := NewBucketView(serve(t, bus, mem), nil)
	ctx := context.Background()

	if err := view.Refresh(ctx); !errors.Is(err, ErrNoBucket) {
		t.Errorf("expected ErrNoBucket, got %v", err)
	}

	if err := view.Open(ctx, "media"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := view.GoTo("a/b"); err != nil {
		t.Fatalf("GoTo failed: %v", err)
	}

	mem.Put("media", storage.Object{Key: "a/b/new.txt", Size: 1})
	if err := view.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if view.PathPrefix() != "a/b" {
		t.Errorf("expected to stay in a/b, got %q", view.PathPrefix())
	}
	if view.TotalItems() != 2 {
		t.Errorf("expected 2 items after refresh, got %d", view.TotalItems())
	}
}

func TestBucketViewPublishesChanges(t *testing.T) {
	bus := events.NewEventBus(100)
	defer bus.Close()
	changes := bus.Subscribe(vdir.ChannelChanged)
	view := NewBucketView(serve(t, bus, sampleBucket()), bus)

	if err := view.Open(context.Background(), "media"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	select {
	case msg := <-changes:
		ev, ok := msg.Payload.(vdir.ChangedEvent)
		if !ok {
			t.Fatalf("unexpected payload %T", msg.Payload)
		}
		if ev.TotalItems != 2 || ev.PathPrefix != "" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no change event after Open")
	}
}
