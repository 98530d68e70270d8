package docs

import (
	"context"

	"github.com/docdrift/docdrift/internal/errors"
	"github.com/docdrift/docdrift/internal/models"
)

// DocFetchResult is a fetched document plus its concurrency token
type DocFetchResult struct {
	Content  string `json:"content"`
	Revision string `json:"revision"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
}

// WriteParams describes a direct writeback. BaseRevision must match the
// document's current revision or the adapter returns a conflict.
type WriteParams struct {
	Ref          models.DocRef
	BaseRevision string
	NewContent   string
	Message      string
}

// WriteResult carries the revision recorded after a successful write
type WriteResult struct {
	Revision string `json:"revision"`
	URL      string `json:"url,omitempty"`
}

// PRParams describes a patch delivered as a pull request
type PRParams struct {
	Ref        models.DocRef
	NewContent string
	Title      string
	Body       string
	BranchName string
}

// PRResult is the opened pull request
type PRResult struct {
	PRNumber int    `json:"pr_number"`
	PRUrl    string `json:"pr_url"`
	Branch   string `json:"branch"`
}

// Adapter is the uniform documentation-system interface
type Adapter interface {
	Fetch(ctx context.Context, ref models.DocRef) (*DocFetchResult, error)
	WritePatch(ctx context.Context, params WriteParams) (*WriteResult, error)
	SupportsDirectWriteback() bool
	DocURL(ref models.DocRef) string
}

// GitAdapter is implemented by Git-backed systems, which deliver patches as
// pull requests instead of direct writes.
type GitAdapter interface {
	Adapter
	CreatePatchPR(ctx context.Context, params PRParams) (*PRResult, error)
}

// Registry maps DocRef.System to its adapter
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(system string, a Adapter) {
	r.adapters[system] = a
}

// Get fails with ADAPTER_NOT_FOUND for unregistered systems
func (r *Registry) Get(system string) (Adapter, error) {
	a, ok := r.adapters[system]
	if !ok {
		return nil, errors.Newf(errors.CodeAdapterNotFound, "no adapter registered for system %q", system)
	}
	return a, nil
}

// Systems lists the registered system names
func (r *Registry) Systems() []string {
	out := make([]string, 0, len(r.adapters))
	for s := range r.adapters {
		out = append(out, s)
	}
	return out
}
