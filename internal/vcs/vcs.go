// Package vcs declares the local working-copy collaborator contract
// (spec.md §6): cloning, checking out, editing, and pushing a repository
// on disk. No concrete git implementation is in scope for this module.
package vcs

import "context"

// FileEdit is one modification to apply in a BatchModify call.
type FileEdit struct {
	Path    string
	Content []byte
	Delete  bool
}

// Workspace is the external collaborator interface the agent's file and
// commit tools (modify_file, commit_changes, create_branch's local-clone
// variant) dispatch through (spec.md §6).
type Workspace interface {
	// EnsureClone clones repo into a local working copy if one does not
	// already exist, returning its path.
	EnsureClone(ctx context.Context, repo string) (path string, err error)

	// Checkout switches the working copy to branch, creating it from
	// fromBranch if it does not exist.
	Checkout(ctx context.Context, path, branch, fromBranch string) error

	// Update fast-forwards the current branch from the remote.
	Update(ctx context.Context, path string) error

	Rename(ctx context.Context, path, oldPath, newPath string) error
	CreateSymlink(ctx context.Context, path, target, linkName string) error

	// BatchModify applies every edit atomically relative to the working
	// copy, so a modify_file/commit_changes tool call either lands every
	// file or none of them (spec.md §4.6, files_modified update rule).
	BatchModify(ctx context.Context, path string, edits []FileEdit) error

	// SafePush pushes branch to the remote, refusing to overwrite a
	// diverged remote ref unless force is set.
	SafePush(ctx context.Context, path, branch string, force bool) error

	// Cleanup removes the working copy.
	Cleanup(ctx context.Context, path string) error
}
