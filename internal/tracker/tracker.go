// Package tracker declares the issue-tracker collaborator contract
// (spec.md §6): everything the agent needs from a GitHub-like tracker to
// read an issue, post comments, manage a branch, and open a pull request.
// No concrete HTTP client is in scope for this module — the interface is
// the boundary; a real implementation is wired in by the host binary.
package tracker

import "context"

// Issue is the tracker-agnostic view of an issue the agent is asked to
// implement.
type Issue struct {
	Number      string
	Title       string
	Body        string
	State       string
	Labels      []string
	Author      string
	HTMLURL     string
}

// Comment is one comment on an issue or pull request.
type Comment struct {
	ID        string
	Author    string
	Body      string
	CreatedAt string
}

// PullRequest is the result of creating a pull request.
type PullRequest struct {
	Number  string
	HTMLURL string
	State   string
}

// ContentEntry is one blob returned from a tree/content listing.
type ContentEntry struct {
	Path string
	SHA  string
	Type string // "file" | "dir"
	Size int
}

// Client is the external collaborator interface the agent's tracker tools
// (post_comment, create_branch, create_pull_request) dispatch through
// (spec.md §6).
type Client interface {
	GetIssue(ctx context.Context, repo, issueNumber string) (*Issue, error)
	ListComments(ctx context.Context, repo, issueNumber string) ([]Comment, error)
	PostComment(ctx context.Context, repo, issueNumber, body string) (*Comment, error)

	GetDefaultBranch(ctx context.Context, repo string) (string, error)
	GetBranchSHA(ctx context.Context, repo, branch string) (string, error)
	CreateBranch(ctx context.Context, repo, name, fromSHA string) error
	UpdateBranch(ctx context.Context, repo, name, toSHA string, force bool) error

	CreatePullRequest(ctx context.Context, repo, head, base, title, body string) (*PullRequest, error)

	GetContent(ctx context.Context, repo, path, ref string) ([]byte, string, error)
	GetTree(ctx context.Context, repo, ref string, recursive bool) ([]ContentEntry, error)
	CreateBlob(ctx context.Context, repo string, content []byte) (sha string, err error)
	CreateTree(ctx context.Context, repo, baseSHA string, entries []ContentEntry) (sha string, err error)
	CreateCommit(ctx context.Context, repo, message, treeSHA string, parentSHAs []string) (sha string, err error)
}

// NotFoundError reports that the tracker has no such resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return "tracker: " + e.Resource + " not found: " + e.ID
}

// APIError wraps a failure returned by the tracker's API, carrying the
// HTTP status code where known.
type APIError struct {
	StatusCode int
	Op         string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err == nil {
		return "tracker: " + e.Op + " failed"
	}
	return "tracker: " + e.Op + " failed: " + e.Err.Error()
}

func (e *APIError) Unwrap() error { return e.Err }
