package vdir

import (
	"sync"
	"time"

	"github.com/rescale/bucketdesk/internal/events"
	"github.com/rescale/bucketdesk/internal/logging"
	"github.com/rescale/bucketdesk/internal/metrics"
	"github.com/rescale/bucketdesk/internal/pathkey"
)

// ChannelChanged is published on the attached transport after every rebuild
// and every successful navigation.
const ChannelChanged = "vdir:changed"

var treeLogger = logging.NewComponentLogger("vdir")

// Entry is one object of a flat listing, as produced by a storage adapter.
type Entry struct {
	Key        string
	Size       int64
	ModifiedAt time.Time
	Metadata   any
}

// SkippedEntry records an entry the last rebuild could not place.
type SkippedEntry struct {
	Key    string
	Reason error
}

// ChangedEvent is the payload of ChannelChanged.
type ChangedEvent struct {
	PathPrefix string
	Nav        []string
	TotalItems int
}

// Controller owns one tree and the current-folder cursor.
//
// Navigation only moves the cursor; Rebuild replaces the whole tree. Nodes of
// a built tree are never mutated afterwards, so nodes handed out by ListFiles
// stay valid (and describe the old tree) after a later Rebuild.
type Controller struct {
	mu      sync.RWMutex
	root    *Folder
	current *Folder
	skipped []SkippedEntry

	// bus is optional; nil disables change notifications
	bus events.Transport
}

// NewController creates a controller holding an empty root folder.
// bus may be nil.
func NewController(bus events.Transport) *Controller {
	root := newFolder("", nil)
	return &Controller{
		root:    root,
		current: root,
		bus:     bus,
	}
}

// Rebuild discards the current tree, builds a new one from entries, and
// resets the cursor to the root. Entries that cannot be placed are skipped
// and reported by Skipped; Rebuild itself never fails.
// It returns the number of entries placed.
func (c *Controller) Rebuild(entries []Entry) int {
	start := time.Now()
	root, skipped := build(entries)
	metrics.RecordTreeRebuild(time.Since(start), len(skipped))

	c.mu.Lock()
	c.root = root
	c.current = root
	c.skipped = skipped
	c.mu.Unlock()

	for _, s := range skipped {
		treeLogger.Debug().Str("key", s.Key).Err(s.Reason).Msg("Skipped entry while building tree")
	}

	c.notify()
	return len(entries) - len(skipped)
}

// build creates a fresh tree. Directory segments are created on demand and
// reused; the first node materialized at a name wins.
func build(entries []Entry) (*Folder, []SkippedEntry) {
	root := newFolder("", nil)
	var skipped []SkippedEntry

	for _, e := range entries {
		if err := insert(root, e); err != nil {
			skipped = append(skipped, SkippedEntry{Key: e.Key, Reason: err})
		}
	}
	return root, skipped
}

func insert(root *Folder, e Entry) error {
	segs, isFolder := pathkey.Split(e.Key)
	if len(segs) == 0 {
		return &Error{Op: OpInsert, Path: e.Key, Err: ErrEmptyKey}
	}

	dirs := segs
	if !isFolder {
		dirs = segs[:len(segs)-1]
	}

	parent := root
	for _, seg := range dirs {
		next, err := parent.folder(seg)
		if err != nil {
			return &Error{Op: OpInsert, Path: e.Key, Err: err}
		}
		parent = next
	}

	if isFolder {
		return nil
	}

	name := segs[len(segs)-1]
	if _, exists := parent.children[name]; exists {
		return &Error{Op: OpInsert, Path: e.Key, Err: ErrConflict}
	}
	parent.attach(name, &File{
		name:       name,
		parent:     parent,
		Size:       e.Size,
		ModifiedAt: e.ModifiedAt,
		Metadata:   e.Metadata,
	})
	return nil
}

// ChangeDir moves the cursor into the child folder called name.
// On failure the cursor is left where it was.
func (c *Controller) ChangeDir(name string) error {
	c.mu.Lock()
	child, ok := c.current.children[name]
	if !ok {
		path := Key(c.current) + name
		c.mu.Unlock()
		return &Error{Op: OpChangeDir, Path: path, Err: ErrNotFound}
	}
	folder, ok := child.(*Folder)
	if !ok {
		c.mu.Unlock()
		return &Error{Op: OpChangeDir, Path: Path(child), Err: ErrNotAFolder}
	}
	c.current = folder
	c.mu.Unlock()

	c.notify()
	return nil
}

// Back moves the cursor to the parent folder. At the root it does nothing.
func (c *Controller) Back() {
	c.mu.Lock()
	if c.current.parent == nil {
		c.mu.Unlock()
		return
	}
	c.current = c.current.parent
	c.mu.Unlock()

	c.notify()
}

// GoTo moves the cursor to the folder named by key ("" is the root). A
// trailing separator is optional, so both "a/b" and the folder marker "a/b/"
// work. Resolution and the move happen under one lock, so a concurrent
// Rebuild cannot leave the cursor in a discarded tree.
func (c *Controller) GoTo(key string) error {
	c.mu.Lock()
	n, err := c.lookup(OpChangeDir, key)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	folder, ok := n.(*Folder)
	if !ok {
		c.mu.Unlock()
		return &Error{Op: OpChangeDir, Path: key, Err: ErrNotAFolder}
	}
	c.current = folder
	c.mu.Unlock()

	c.notify()
	return nil
}

// PathPrefix returns the full path of the current folder ("" at the root).
// Keys for objects inside the folder come from ChildKey.
func (c *Controller) PathPrefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Path(c.current)
}

// Nav returns the breadcrumb trail: folder names from below the root down
// to the current folder inclusive. The root is implicit, so Nav is empty at
// the root.
func (c *Controller) Nav() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return nav(c.current)
}

func nav(d *Folder) []string {
	var trail []string
	for cur := d; cur.parent != nil; cur = cur.parent {
		trail = append(trail, cur.name)
	}
	for i, j := 0, len(trail)-1; i < j; i, j = i+1, j-1 {
		trail[i], trail[j] = trail[j], trail[i]
	}
	if trail == nil {
		trail = []string{}
	}
	return trail
}

// ListFiles returns the current folder's direct children in insertion order.
func (c *Controller) ListFiles() []Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Children()
}

// TotalItems returns the number of direct children of the current folder.
func (c *Controller) TotalItems() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Len()
}

// Current returns the current folder.
func (c *Controller) Current() *Folder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Root returns the root folder of the current tree.
func (c *Controller) Root() *Folder {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.root
}

// Lookup resolves a key relative to the root without moving the cursor.
// A folder marker key resolves to its folder.
func (c *Controller) Lookup(key string) (Node, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookup(OpLookup, key)
}

// lookup walks key's raw segments from the root. c.mu must be held.
func (c *Controller) lookup(op, key string) (Node, error) {
	segs, _ := pathkey.Split(key)
	var n Node = c.root
	for _, seg := range segs {
		d, ok := n.(*Folder)
		if !ok {
			return nil, &Error{Op: op, Path: key, Err: ErrNotAFolder}
		}
		child, ok := d.children[seg]
		if !ok {
			return nil, &Error{Op: op, Path: key, Err: ErrNotFound}
		}
		n = child
	}
	return n, nil
}

// FolderKey returns the folder marker key of the current folder, "" at the
// root. Unlike PathPrefix it round-trips through GoTo for every folder.
func (c *Controller) FolderKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Key(c.current)
}

// ChildKey returns the key an object called name in the current folder has.
func (c *Controller) ChildKey(name string) string {
	return c.FolderKey() + name
}

// Skipped returns the entries the last Rebuild omitted.
func (c *Controller) Skipped() []SkippedEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]SkippedEntry, len(c.skipped))
	copy(out, c.skipped)
	return out
}

func (c *Controller) notify() {
	if c.bus == nil {
		return
	}
	c.mu.RLock()
	ev := ChangedEvent{
		PathPrefix: Path(c.current),
		Nav:        nav(c.current),
		TotalItems: c.current.Len(),
	}
	c.mu.RUnlock()
	c.bus.Publish(ChannelChanged, ev)
}
