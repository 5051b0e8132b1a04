// Package shell is the initiating side of the protocol: it issues calls to
// the long-lived process and keeps a navigable view of the selected bucket.
package shell

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rescale/bucketdesk/internal/events"
	"github.com/rescale/bucketdesk/internal/ipc"
	"github.com/rescale/bucketdesk/internal/logging"
	"github.com/rescale/bucketdesk/internal/pathkey"
	"github.com/rescale/bucketdesk/internal/services"
	"github.com/rescale/bucketdesk/internal/storage"
	"github.com/rescale/bucketdesk/internal/validation"
	"github.com/rescale/bucketdesk/internal/vdir"
)

var (
	// ErrNoBucket indicates an operation that needs an open bucket
	ErrNoBucket = errors.New("no bucket open")

	// ErrNoDomain indicates the bucket has no public domain to link to
	ErrNoDomain = errors.New("no domain configured for bucket")
)

// BucketView is one open bucket: the tree built from its listing plus the
// domains links are built from. Navigation never leaves this process; only
// Open and Refresh issue calls.
type BucketView struct {
	corr   *ipc.Correlator
	tree   *vdir.Controller
	logger *logging.Logger

	mu      sync.RWMutex
	bucket  string
	domains []string
}

// NewBucketView creates a view that issues calls through corr. Tree changes
// are published on bus when it is non-nil.
func NewBucketView(corr *ipc.Correlator, bus events.Transport) *BucketView {
	return &BucketView{
		corr:   corr,
		tree:   vdir.NewController(bus),
		logger: logging.NewComponentLogger("shell"),
	}
}

// Open lists bucket through switch-bucket and rebuilds the tree from it.
// The cursor moves to the root. On failure the previous bucket stays open.
func (v *BucketView) Open(ctx context.Context, bucket string) error {
	listing, err := ipc.CallInto[services.BucketListing](ctx, v.corr, services.ChannelSwitchBucket, services.BucketRequest{Bucket: bucket})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", bucket, err)
	}

	placed := v.tree.Rebuild(storage.Entries(listing.Files))

	v.mu.Lock()
	v.bucket = listing.Bucket
	v.domains = listing.Domains
	v.mu.Unlock()

	v.logger.Debug().
		Str("bucket", listing.Bucket).
		Int("objects", len(listing.Files)).
		Int("placed", placed).
		Msg("Bucket opened")
	return nil
}

// Refresh relists the open bucket and returns to the same folder when it
// still exists.
func (v *BucketView) Refresh(ctx context.Context) error {
	bucket := v.Bucket()
	if bucket == "" {
		return ErrNoBucket
	}
	folder := v.tree.FolderKey()
	if err := v.Open(ctx, bucket); err != nil {
		return err
	}
	if folder != "" {
		if err := v.tree.GoTo(folder); err != nil {
			v.logger.Debug().Err(err).Str("path", folder).Msg("Folder gone after refresh")
		}
	}
	return nil
}

// Bucket returns the open bucket name, "" before Open.
func (v *BucketView) Bucket() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.bucket
}

// Domains returns the public domains of the open bucket.
func (v *BucketView) Domains() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]string(nil), v.domains...)
}

// Tree returns the underlying controller.
func (v *BucketView) Tree() *vdir.Controller {
	return v.tree
}

// ChangeDir enters a child folder of the current folder.
func (v *BucketView) ChangeDir(name string) error {
	return v.tree.ChangeDir(name)
}

// Back moves to the parent folder.
func (v *BucketView) Back() {
	v.tree.Back()
}

// GoTo jumps to a folder by path from the root.
func (v *BucketView) GoTo(path string) error {
	return v.tree.GoTo(path)
}

// Items returns the current folder's direct children.
func (v *BucketView) Items() []vdir.Node {
	return v.tree.ListFiles()
}

// Nav returns the breadcrumb trail.
func (v *BucketView) Nav() []string {
	return v.tree.Nav()
}

// PathPrefix returns the current folder's path.
func (v *BucketView) PathPrefix() string {
	return v.tree.PathPrefix()
}

// TotalItems returns the number of entries in the current folder.
func (v *BucketView) TotalItems() int {
	return v.tree.TotalItems()
}

// UploadTarget returns the key a local file dropped into the current folder
// is stored under.
func (v *BucketView) UploadTarget(localPath string) (string, error) {
	name := filepath.Base(localPath)
	if err := validation.ValidateFilename(name); err != nil {
		return "", err
	}
	return v.tree.ChildKey(name), nil
}

// Link returns the public link to a file in the current folder.
func (v *BucketView) Link(name string, markdown bool) (string, error) {
	return v.LinkKey(v.tree.ChildKey(name), markdown)
}

// LinkKey returns the public link to the file stored under key.
func (v *BucketView) LinkKey(key string, markdown bool) (string, error) {
	if pathkey.IsFolderKey(key) {
		return "", &vdir.Error{Op: vdir.OpLookup, Path: key, Err: vdir.ErrNotAFile}
	}
	n, err := v.tree.Lookup(key)
	if err != nil {
		return "", err
	}
	if n.IsFolder() {
		return "", &vdir.Error{Op: vdir.OpLookup, Path: key, Err: vdir.ErrNotAFile}
	}

	domains := v.Domains()
	if len(domains) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoDomain, v.Bucket())
	}
	return services.FormatLink(domains[0], key, markdown), nil
}
