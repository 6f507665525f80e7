// Package version implements the workflow version store (spec §4.7):
// per-version metadata persisted as JSON on disk, a loader that tolerates
// and removes corrupt entries, and the cross-version union lookup that
// drives artifact reuse across runs.
//
// The on-disk format and read/write helpers are grounded directly on the
// teacher's cache metadata file: cli/internal/cache/cache_fs.go's
// WriteCacheMetaFile/ReadCacheMetaFile pair (encoding/json, marshal to
// bytes, write/read a single file) generalized from one struct to a
// directory of them. Structured logging on corruption uses
// github.com/hashicorp/go-hclog, the same logger
// cli/internal/graph/graph.go and cli/internal/taskhash/taskhash.go use.
package version

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/hashicorp/go-hclog"
)

// VersionedTaskId identifies a (task, realization) pair at a specific
// version number.
type VersionedTaskId struct {
	Task        string `json:"task"`
	Realization string `json:"realization"`
	Version     int    `json:"version"`
}

func (id VersionedTaskId) key() string { return id.Task + "/" + id.Realization }

// WorkflowVersionInfo is the set of VersionedTaskIds that existed at one
// previous workflow run, persisted as the "tasks" file inside that
// version's directory.
type WorkflowVersionInfo struct {
	Version int               `json:"version"`
	Tasks   []VersionedTaskId `json:"tasks"`
}

// tasksFileName is the serialized VersionedTaskId list within a version
// directory (spec §6: "tasks  # serialized VersionedTaskId list").
const tasksFileName = "tasks"

// writeInfo serializes info to dir/tasks as JSON, grounded on
// WriteCacheMetaFile's marshal-then-write shape.
func writeInfo(dir string, info *WorkflowVersionInfo) error {
	b, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("version: marshal %d: %w", info.Version, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("version: mkdir %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, tasksFileName), b, 0o644); err != nil {
		return fmt.Errorf("version: write %s: %w", dir, err)
	}
	return nil
}

// readInfo deserializes dir/tasks, grounded on ReadCacheMetaFile's
// read-then-unmarshal shape. An entry is considered incomplete (and
// therefore corrupt, per spec §4.7) if its Version field is not a
// positive integer or any task within it has an empty Task/Realization
// name.
func readInfo(dir string) (*WorkflowVersionInfo, error) {
	b, err := os.ReadFile(filepath.Join(dir, tasksFileName))
	if err != nil {
		return nil, err
	}
	var info WorkflowVersionInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return nil, err
	}
	if info.Version <= 0 {
		return nil, fmt.Errorf("version: %s: non-positive version %d", dir, info.Version)
	}
	for _, t := range info.Tasks {
		if t.Task == "" || t.Realization == "" {
			return nil, fmt.Errorf("version: %s: task entry missing name/realization", dir)
		}
	}
	return &info, nil
}

// WorkflowVersionHistory is the ordered collection of WorkflowVersionInfo
// successfully loaded from a version-history root, highest version last.
type WorkflowVersionHistory struct {
	root    string
	logger  hclog.Logger
	delay   time.Duration
	entries []*WorkflowVersionInfo
}

// Option configures Load.
type Option func(*WorkflowVersionHistory)

// WithLogger overrides the default null logger.
func WithLogger(l hclog.Logger) Option {
	return func(h *WorkflowVersionHistory) { h.logger = l }
}

// WithCorruptionDelay overrides the default bounded delay applied before
// deleting a directory that failed to parse, mitigating transient
// filesystem states (spec §4.7). Defaults to 200ms; see DESIGN.md's
// open-question decision for why 200ms rather than the source's 3s.
func WithCorruptionDelay(d time.Duration) Option {
	return func(h *WorkflowVersionHistory) { h.delay = d }
}

// Load lists subdirectories of root, attempts to parse each as a
// WorkflowVersionInfo, and deletes (after a bounded delay, with a warning
// logged) any that fail to parse or are incomplete. Never aborts on a
// single bad directory — spec §4.7's corruption policy.
func Load(root string, opts ...Option) (*WorkflowVersionHistory, error) {
	h := &WorkflowVersionHistory{
		root:   root,
		logger: hclog.NewNullLogger(),
		delay:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(h)
	}

	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return h, nil
	}
	if err != nil {
		return nil, fmt.Errorf("version: read %s: %w", root, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		dir := filepath.Join(root, name)
		info, err := readInfo(dir)
		if err != nil {
			h.logger.Warn("dropping corrupt version directory", "dir", dir, "error", err)
			time.Sleep(h.delay)
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				h.logger.Warn("failed to remove corrupt version directory", "dir", dir, "error", rmErr)
			}
			continue
		}
		h.entries = append(h.entries, info)
	}

	sort.Slice(h.entries, func(i, j int) bool { return h.entries[i].Version < h.entries[j].Version })
	return h, nil
}

// Entries returns every retained WorkflowVersionInfo, lowest version
// first.
func (h *WorkflowVersionHistory) Entries() []*WorkflowVersionInfo {
	out := make([]*WorkflowVersionInfo, len(h.entries))
	copy(out, h.entries)
	return out
}

// PrevVersion returns the max version number across retained entries,
// and false if there are none.
func (h *WorkflowVersionHistory) PrevVersion() (int, bool) {
	if len(h.entries) == 0 {
		return 0, false
	}
	return h.entries[len(h.entries)-1].Version, true
}

// NextVersion is PrevVersion()+1, defaulting to 1.
func (h *WorkflowVersionHistory) NextVersion() int {
	prev, ok := h.PrevVersion()
	if !ok {
		return 1
	}
	return prev + 1
}

// Persist writes a new WorkflowVersionInfo for the given tasks at
// NextVersion under h.root, and appends it to the in-memory history.
func (h *WorkflowVersionHistory) Persist(tasks []VersionedTaskId) (*WorkflowVersionInfo, error) {
	v := h.NextVersion()
	info := &WorkflowVersionInfo{Version: v, Tasks: tasks}
	if err := writeInfo(filepath.Join(h.root, strconv.Itoa(v)), info); err != nil {
		return nil, err
	}
	h.entries = append(h.entries, info)
	return info, nil
}

// UnionWorkflowVersionInfo is the cross-version lookup structure
// produced by Union(): for any VersionedTaskId key, it answers with the
// highest version number that (task, realization) pair was last seen at.
type UnionWorkflowVersionInfo struct {
	fallback int
	latest   map[string]int
}

// Union constructs a UnionWorkflowVersionInfo from every retained entry.
func (h *WorkflowVersionHistory) Union() *UnionWorkflowVersionInfo {
	fallback, _ := h.PrevVersion()
	u := &UnionWorkflowVersionInfo{fallback: fallback, latest: make(map[string]int)}
	for _, info := range h.entries {
		for _, t := range info.Tasks {
			k := t.key()
			if cur, ok := u.latest[k]; !ok || info.Version > cur {
				u.latest[k] = info.Version
			}
		}
	}
	return u
}

// Lookup returns the highest-versioned prior occurrence of id's (task,
// realization) pair. If id was never seen before, it returns
// fallback_version — the current max version across all retained
// entries (0 if there is no history at all) — so freshly introduced
// tasks don't spuriously match a stale artifact.
func (u *UnionWorkflowVersionInfo) Lookup(id VersionedTaskId) int {
	if v, ok := u.latest[id.key()]; ok {
		return v
	}
	return u.fallback
}
