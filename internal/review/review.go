// Package review implements the staging protocol for agent-proposed diffs:
// each pending diff is surfaced as an editable review unit separate from the
// real file, and resolved per-file or in bulk against both the workspace
// store and the backend.
package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/hugemartyr/yellowbench/internal/workspace"
	"github.com/hugemartyr/yellowbench/sdk/yellow"
)

// pathPrefix distinguishes review units from real files in the open list.
const pathPrefix = "review://"

// Path returns the virtual path of the review unit for a file.
func Path(file string) string {
	return pathPrefix + file
}

// IsPath reports whether p names a review unit.
func IsPath(p string) bool {
	return strings.HasPrefix(p, pathPrefix)
}

// Source returns the real file path behind a review unit path.
func Source(p string) string {
	return strings.TrimPrefix(p, pathPrefix)
}

// Resolver stages pending diffs and carries out resolution decisions.
type Resolver struct {
	store  *workspace.Store
	client *yellow.Client
	logger *yellow.Logger
}

// NewResolver creates a resolver over the given store and backend client.
func NewResolver(store *workspace.Store, client *yellow.Client, logger *yellow.Logger) *Resolver {
	if logger == nil {
		logger = yellow.NewLoggerFromEnv()
	}
	return &Resolver{store: store, client: client, logger: logger}
}

// Stage records a proposed change as the pending diff for its file and opens
// an editable review unit holding the proposed content. A later proposal for
// the same file replaces the unit wholesale, including any in-progress edits
// to the superseded one.
func (r *Resolver) Stage(d workspace.PendingDiff) {
	r.store.UpsertPendingDiff(d)
	// MarkSaved forces both sides of the review unit to the new proposal and
	// clears dirty, so a superseded unit's edits do not survive.
	r.store.MarkSaved(Path(d.File), d.NewCode)
	r.store.Open(Path(d.File))
}

// ApplyOne persists the review unit's current content (which the operator
// may have edited) to the real file, resolves the pending diff, closes the
// review unit, and selects the real file. On any endpoint failure the
// pending state is left intact so the action can be retried.
func (r *Resolver) ApplyOne(ctx context.Context, file string) error {
	d, ok := r.store.PendingDiff(file)
	if !ok {
		return fmt.Errorf("no pending diff for %s", file)
	}

	content := d.NewCode
	if draft := r.store.Draft(Path(file)); draft != "" || r.store.Dirty(Path(file)) {
		content = draft
	}

	if err := r.client.WriteFile(ctx, file, content); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	// Pop the server-side pending entry without a second server write; the
	// edited content above is already persisted.
	if _, err := r.client.ResolveFile(ctx, yellow.ResolveFileRequest{
		RunID:    r.store.ActiveRun(),
		File:     file,
		Approved: false,
	}); err != nil {
		return fmt.Errorf("resolve %s: %w", file, err)
	}

	r.store.MarkSaved(file, content)
	r.store.RemovePendingDiff(file)
	r.store.Close(Path(file))
	r.store.Open(file)
	r.logger.Info("applied diff", "file", file)
	return nil
}

// DiscardOne rejects the pending diff for a file without touching the real
// file's content.
func (r *Resolver) DiscardOne(ctx context.Context, file string) error {
	if _, ok := r.store.PendingDiff(file); !ok {
		return fmt.Errorf("no pending diff for %s", file)
	}
	if _, err := r.client.ResolveFile(ctx, yellow.ResolveFileRequest{
		RunID:    r.store.ActiveRun(),
		File:     file,
		Approved: false,
	}); err != nil {
		return fmt.Errorf("resolve %s: %w", file, err)
	}
	r.store.RemovePendingDiff(file)
	r.store.Close(Path(file))
	r.logger.Info("discarded diff", "file", file)
	return nil
}

// ResolveAll applies or discards the whole pending set, clears the review
// gate's file list, and closes every review unit. The approve path writes
// each unit's edited content first, then acknowledges so the server's
// pending set is cleared without a competing server-side write; it finishes
// with a tree refresh since bulk changes are likely to add or remove files.
func (r *Resolver) ResolveAll(ctx context.Context, approved bool) error {
	diffs := r.store.PendingDiffs()

	if approved {
		for _, d := range diffs {
			content := d.NewCode
			if draft := r.store.Draft(Path(d.File)); draft != "" || r.store.Dirty(Path(d.File)) {
				content = draft
			}
			if err := r.client.WriteFile(ctx, d.File, content); err != nil {
				return fmt.Errorf("write %s: %w", d.File, err)
			}
			r.store.MarkSaved(d.File, content)
		}
	}

	if err := r.client.AcknowledgeAll(ctx, r.store.ActiveRun()); err != nil {
		return fmt.Errorf("clear pending set: %w", err)
	}

	for _, d := range diffs {
		r.store.RemovePendingDiff(d.File)
		r.store.Close(Path(d.File))
	}
	r.store.ClearGate()

	if approved {
		tree, err := r.client.FileTree(ctx)
		if err != nil {
			// The writes are done; a failed refresh only leaves the tree stale.
			r.logger.Warn("tree refresh after bulk apply failed", "error", err)
		} else {
			r.store.SetFileTree(tree)
		}
	}
	r.logger.Info("resolved all diffs", "approved", approved, "count", len(diffs))
	return nil
}
