// Package hosting provides an optional pull-request-creation adapter
// invoked after a successful coder commit. It is enrichment beyond
// spec.md's minimum VCS surface (spec.md §4.9), wrapping go-github the
// way the teacher's internal/hosting/github package does.
package hosting

import (
	"context"
	"fmt"

	"github.com/google/go-github/v82/github"
)

// PullRequest is the subset of a created PR governor records.
type PullRequest struct {
	Number int
	URL    string
	Title  string
}

// CreateOptions describes a PR to open after a coder commit.
type CreateOptions struct {
	Title string
	Body  string
	Head  string // branch carrying the commit
	Base  string // target branch, e.g. "main"
	Draft bool
}

// Provider creates pull requests for completed tasks. GitHubProvider
// is the only concrete implementation this repo ships; any other host
// can be added behind the same interface.
type Provider interface {
	CreatePR(ctx context.Context, owner, repo string, opts CreateOptions) (*PullRequest, error)
}

// GitHubProvider implements Provider using google/go-github.
type GitHubProvider struct {
	client *github.Client
}

// NewGitHubProvider creates a GitHubProvider authenticated with token.
// An empty token yields an unauthenticated client, suitable only
// against public repositories with generous rate limits.
func NewGitHubProvider(token string) *GitHubProvider {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubProvider{client: client}
}

// CreatePR opens a pull request for a task's coder-phase branch.
func (p *GitHubProvider) CreatePR(ctx context.Context, owner, repo string, opts CreateOptions) (*PullRequest, error) {
	newPR := &github.NewPullRequest{
		Title: github.Ptr(opts.Title),
		Head:  github.Ptr(opts.Head),
		Base:  github.Ptr(opts.Base),
		Body:  github.Ptr(opts.Body),
		Draft: github.Ptr(opts.Draft),
	}

	created, _, err := p.client.PullRequests.Create(ctx, owner, repo, newPR)
	if err != nil {
		return nil, fmt.Errorf("create pull request: %w", err)
	}

	return &PullRequest{
		Number: created.GetNumber(),
		URL:    created.GetHTMLURL(),
		Title:  created.GetTitle(),
	}, nil
}
