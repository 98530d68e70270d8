package docs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	"github.com/docdrift/docdrift/internal/errors"
	"github.com/docdrift/docdrift/internal/models"
)

// GitHubAdapter serves the Git-backed systems: github_readme, swagger and
// backstage all resolve to files in a repository. Direct writeback is never
// supported; patches go out as pull requests.
type GitHubAdapter struct {
	client      *github.Client
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewGitHubAdapter creates the adapter with client-side rate limiting
func NewGitHubAdapter(token string, rateLimit int) *GitHubAdapter {
	if rateLimit <= 0 {
		rateLimit = 10
	}
	return &GitHubAdapter{
		client:      github.NewClient(nil).WithAuthToken(token),
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
		logger:      slog.Default().With("component", "docs.github"),
	}
}

func splitRepo(ref models.DocRef) (owner, name string, err error) {
	parts := strings.SplitN(ref.Repo, "/", 2)
	if len(parts) != 2 {
		return "", "", errors.Newf(errors.CodeAdapterNotFound, "doc ref repo %q is not owner/name", ref.Repo)
	}
	return parts[0], parts[1], nil
}

// Fetch reads the file contents; the blob SHA is the revision token
func (a *GitHubAdapter) Fetch(ctx context.Context, ref models.DocRef) (*DocFetchResult, error) {
	owner, name, err := splitRepo(ref)
	if err != nil {
		return nil, err
	}
	if err := a.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	file, _, _, err := a.client.Repositories.GetContents(ctx, owner, name, ref.Path, nil)
	if err != nil {
		return nil, wrapGitHubError(err, ref)
	}
	if file == nil {
		return nil, errors.Newf(errors.CodeAdapterNotFound, "%s is a directory, not a file", ref.Path)
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode contents of %s: %w", ref.Path, err)
	}

	return &DocFetchResult{
		Content:  content,
		Revision: file.GetSHA(),
		Title:    ref.Path,
		URL:      file.GetHTMLURL(),
	}, nil
}

// WritePatch is unsupported: Git-backed docs change through pull requests
func (a *GitHubAdapter) WritePatch(ctx context.Context, params WriteParams) (*WriteResult, error) {
	return nil, errors.Newf(errors.CodeAdapterNotFound,
		"system %s does not support direct writeback, use CreatePatchPR", params.Ref.System)
}

func (a *GitHubAdapter) SupportsDirectWriteback() bool { return false }

func (a *GitHubAdapter) DocURL(ref models.DocRef) string {
	return fmt.Sprintf("https://github.com/%s/blob/HEAD/%s", ref.Repo, ref.Path)
}

// CreatePatchPR opens a branch, commits the new contents and opens a PR
func (a *GitHubAdapter) CreatePatchPR(ctx context.Context, params PRParams) (*PRResult, error) {
	owner, name, err := splitRepo(params.Ref)
	if err != nil {
		return nil, err
	}

	if err := a.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	repo, _, err := a.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, wrapGitHubError(err, params.Ref)
	}
	base := repo.GetDefaultBranch()

	if err := a.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	baseRef, _, err := a.client.Git.GetRef(ctx, owner, name, "refs/heads/"+base)
	if err != nil {
		return nil, wrapGitHubError(err, params.Ref)
	}

	branch := params.BranchName
	if branch == "" {
		branch = fmt.Sprintf("docdrift/patch-%d", time.Now().Unix())
	}
	if err := a.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	_, _, err = a.client.Git.CreateRef(ctx, owner, name, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: baseRef.Object.SHA},
	})
	if err != nil {
		return nil, wrapGitHubError(err, params.Ref)
	}

	if err := a.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	file, _, _, err := a.client.Repositories.GetContents(ctx, owner, name, params.Ref.Path,
		&github.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		return nil, wrapGitHubError(err, params.Ref)
	}

	if err := a.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	_, _, err = a.client.Repositories.UpdateFile(ctx, owner, name, params.Ref.Path, &github.RepositoryContentFileOptions{
		Message: github.String(params.Title),
		Content: []byte(params.NewContent),
		SHA:     github.String(file.GetSHA()),
		Branch:  github.String(branch),
	})
	if err != nil {
		return nil, wrapGitHubError(err, params.Ref)
	}

	if err := a.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	pr, _, err := a.client.PullRequests.Create(ctx, owner, name, &github.NewPullRequest{
		Title: github.String(params.Title),
		Body:  github.String(params.Body),
		Head:  github.String(branch),
		Base:  github.String(base),
	})
	if err != nil {
		return nil, wrapGitHubError(err, params.Ref)
	}

	a.logger.Info("patch PR opened",
		"repo", params.Ref.Repo,
		"path", params.Ref.Path,
		"pr", pr.GetNumber(),
	)
	return &PRResult{
		PRNumber: pr.GetNumber(),
		PRUrl:    pr.GetHTMLURL(),
		Branch:   branch,
	}, nil
}

// wrapGitHubError maps API failures onto the pipeline's error codes so the
// state machine can decide retry vs terminate.
func wrapGitHubError(err error, ref models.DocRef) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		e := errors.Wrap(errors.CodeGitHubRateLimit, "github rate limit hit", err)
		e.Transient = true
		return e
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		switch ghErr.Response.StatusCode {
		case 401, 403:
			return errors.Wrap(errors.CodeAdapterAuth, "github auth failed", err).
				WithContext("repo", ref.Repo)
		case 404:
			return errors.Wrap(errors.CodeAdapterNotFound, "document not found", err).
				WithContext("path", ref.Path)
		}
		if ghErr.Response.StatusCode >= 500 {
			return errors.TransientErr("github server error", err)
		}
	}
	return errors.TransientErr("github request failed", err)
}
