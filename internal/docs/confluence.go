package docs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/docdrift/docdrift/internal/errors"
	"github.com/docdrift/docdrift/internal/models"
)

// ConfluenceAdapter talks to the Confluence Cloud REST API. The page version
// number is the optimistic-concurrency token: a write whose base version no
// longer matches the live page fails with CONFLUENCE_CONFLICT.
type ConfluenceAdapter struct {
	baseURL    string
	email      string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewConfluenceAdapter(baseURL, email, token string) *ConfluenceAdapter {
	return &ConfluenceAdapter{
		baseURL:    baseURL,
		email:      email,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default().With("component", "docs.confluence"),
	}
}

type confluencePage struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Version struct {
		Number int `json:"number"`
	} `json:"version"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Links struct {
		WebUI string `json:"webui"`
	} `json:"_links"`
}

func (a *ConfluenceAdapter) Fetch(ctx context.Context, ref models.DocRef) (*DocFetchResult, error) {
	url := fmt.Sprintf("%s/wiki/rest/api/content/%s?expand=body.storage,version", a.baseURL, ref.ID)
	var page confluencePage
	if err := a.do(ctx, http.MethodGet, url, nil, &page); err != nil {
		return nil, err
	}
	return &DocFetchResult{
		Content:  page.Body.Storage.Value,
		Revision: strconv.Itoa(page.Version.Number),
		Title:    page.Title,
		URL:      a.baseURL + "/wiki" + page.Links.WebUI,
	}, nil
}

func (a *ConfluenceAdapter) WritePatch(ctx context.Context, params WriteParams) (*WriteResult, error) {
	// Re-fetch and compare: the stored base revision must still be current
	current, err := a.Fetch(ctx, params.Ref)
	if err != nil {
		return nil, err
	}
	if current.Revision != params.BaseRevision {
		return nil, errors.Newf(errors.CodeConfluenceConflict,
			"page %s moved from version %s to %s since evidence was built",
			params.Ref.ID, params.BaseRevision, current.Revision)
	}

	base, _ := strconv.Atoi(params.BaseRevision)
	next := base + 1
	body := map[string]any{
		"id":    params.Ref.ID,
		"type":  "page",
		"title": current.Title,
		"version": map[string]any{
			"number":  next,
			"message": params.Message,
		},
		"body": map[string]any{
			"storage": map[string]any{
				"value":          params.NewContent,
				"representation": "storage",
			},
		},
	}

	url := fmt.Sprintf("%s/wiki/rest/api/content/%s", a.baseURL, params.Ref.ID)
	var updated confluencePage
	if err := a.do(ctx, http.MethodPut, url, body, &updated); err != nil {
		return nil, err
	}

	a.logger.Info("confluence page updated",
		"page_id", params.Ref.ID,
		"version", updated.Version.Number,
	)
	return &WriteResult{
		Revision: strconv.Itoa(updated.Version.Number),
		URL:      a.baseURL + "/wiki" + updated.Links.WebUI,
	}, nil
}

func (a *ConfluenceAdapter) SupportsDirectWriteback() bool { return true }

func (a *ConfluenceAdapter) DocURL(ref models.DocRef) string {
	return fmt.Sprintf("%s/wiki/spaces/%s/pages/%s", a.baseURL, ref.Space, ref.ID)
}

func (a *ConfluenceAdapter) do(ctx context.Context, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(a.email, a.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errors.TransientErr("confluence request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.New(errors.CodeAdapterAuth, "confluence auth failed")
	case resp.StatusCode == http.StatusNotFound:
		return errors.Newf(errors.CodeAdapterNotFound, "confluence page not found: %s", url)
	case resp.StatusCode == http.StatusConflict:
		return errors.New(errors.CodeConfluenceConflict, "confluence version conflict")
	case resp.StatusCode >= 500:
		return errors.TransientErr(fmt.Sprintf("confluence server error %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(resp.Body)
		return errors.Newf(errors.CodeInternal, "confluence error %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
