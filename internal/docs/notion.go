package docs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/docdrift/docdrift/internal/errors"
	"github.com/docdrift/docdrift/internal/models"
)

const notionAPIVersion = "2022-06-28"

// NotionAdapter reads and writes Notion pages. Notion has no version
// numbers, so the page's last_edited_time is the concurrency token.
type NotionAdapter struct {
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewNotionAdapter(token string) *NotionAdapter {
	return &NotionAdapter{
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default().With("component", "docs.notion"),
	}
}

type notionPage struct {
	ID             string `json:"id"`
	LastEditedTime string `json:"last_edited_time"`
	URL            string `json:"url"`
}

type notionBlockList struct {
	Results []notionBlock `json:"results"`
	HasMore bool          `json:"has_more"`
	Cursor  string        `json:"next_cursor"`
}

type notionBlock struct {
	ID        string          `json:"id,omitempty"`
	Type      string          `json:"type"`
	Paragraph *notionRichBody `json:"paragraph,omitempty"`
	Heading1  *notionRichBody `json:"heading_1,omitempty"`
	Heading2  *notionRichBody `json:"heading_2,omitempty"`
	Heading3  *notionRichBody `json:"heading_3,omitempty"`
	Bulleted  *notionRichBody `json:"bulleted_list_item,omitempty"`
	Code      *notionRichBody `json:"code,omitempty"`
}

type notionRichBody struct {
	RichText []notionRichText `json:"rich_text"`
}

type notionRichText struct {
	Type string `json:"type"`
	Text struct {
		Content string `json:"content"`
	} `json:"text"`
	PlainText string `json:"plain_text,omitempty"`
}

func (a *NotionAdapter) Fetch(ctx context.Context, ref models.DocRef) (*DocFetchResult, error) {
	var page notionPage
	if err := a.do(ctx, http.MethodGet, "https://api.notion.com/v1/pages/"+ref.ID, nil, &page); err != nil {
		return nil, err
	}

	var sb strings.Builder
	cursor := ""
	for {
		url := fmt.Sprintf("https://api.notion.com/v1/blocks/%s/children?page_size=100", ref.ID)
		if cursor != "" {
			url += "&start_cursor=" + cursor
		}
		var list notionBlockList
		if err := a.do(ctx, http.MethodGet, url, nil, &list); err != nil {
			return nil, err
		}
		for _, b := range list.Results {
			sb.WriteString(renderBlock(b))
		}
		if !list.HasMore {
			break
		}
		cursor = list.Cursor
	}

	return &DocFetchResult{
		Content:  sb.String(),
		Revision: page.LastEditedTime,
		URL:      page.URL,
	}, nil
}

func renderBlock(b notionBlock) string {
	text := func(body *notionRichBody) string {
		if body == nil {
			return ""
		}
		var sb strings.Builder
		for _, rt := range body.RichText {
			if rt.PlainText != "" {
				sb.WriteString(rt.PlainText)
			} else {
				sb.WriteString(rt.Text.Content)
			}
		}
		return sb.String()
	}
	switch b.Type {
	case "heading_1":
		return "# " + text(b.Heading1) + "\n"
	case "heading_2":
		return "## " + text(b.Heading2) + "\n"
	case "heading_3":
		return "### " + text(b.Heading3) + "\n"
	case "bulleted_list_item":
		return "- " + text(b.Bulleted) + "\n"
	case "code":
		return "```\n" + text(b.Code) + "\n```\n"
	case "paragraph":
		return text(b.Paragraph) + "\n"
	}
	return ""
}

// WritePatch replaces the page body. The base revision check is a
// read-compare: Notion offers no conditional writes, so the window between
// check and write is accepted and the pipeline re-runs on the next signal.
func (a *NotionAdapter) WritePatch(ctx context.Context, params WriteParams) (*WriteResult, error) {
	current, err := a.Fetch(ctx, params.Ref)
	if err != nil {
		return nil, err
	}
	if current.Revision != params.BaseRevision {
		return nil, errors.Newf(errors.CodeConfluenceConflict,
			"notion page %s edited since evidence was built", params.Ref.ID)
	}

	blocks := blocksFromMarkdown(params.NewContent)
	body := map[string]any{"children": blocks}
	if err := a.do(ctx, http.MethodPatch, "https://api.notion.com/v1/blocks/"+params.Ref.ID+"/children", body, nil); err != nil {
		return nil, err
	}

	var page notionPage
	if err := a.do(ctx, http.MethodGet, "https://api.notion.com/v1/pages/"+params.Ref.ID, nil, &page); err != nil {
		return nil, err
	}
	a.logger.Info("notion page updated", "page_id", params.Ref.ID)
	return &WriteResult{Revision: page.LastEditedTime, URL: page.URL}, nil
}

func blocksFromMarkdown(content string) []notionBlock {
	var blocks []notionBlock
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		b := notionBlock{}
		rich := &notionRichBody{RichText: []notionRichText{{Type: "text"}}}
		switch {
		case strings.HasPrefix(line, "### "):
			rich.RichText[0].Text.Content = strings.TrimPrefix(line, "### ")
			b.Type, b.Heading3 = "heading_3", rich
		case strings.HasPrefix(line, "## "):
			rich.RichText[0].Text.Content = strings.TrimPrefix(line, "## ")
			b.Type, b.Heading2 = "heading_2", rich
		case strings.HasPrefix(line, "# "):
			rich.RichText[0].Text.Content = strings.TrimPrefix(line, "# ")
			b.Type, b.Heading1 = "heading_1", rich
		case strings.HasPrefix(line, "- "):
			rich.RichText[0].Text.Content = strings.TrimPrefix(line, "- ")
			b.Type, b.Bulleted = "bulleted_list_item", rich
		default:
			rich.RichText[0].Text.Content = line
			b.Type, b.Paragraph = "paragraph", rich
		}
		blocks = append(blocks, b)
	}
	return blocks
}

func (a *NotionAdapter) SupportsDirectWriteback() bool { return true }

func (a *NotionAdapter) DocURL(ref models.DocRef) string {
	return "https://notion.so/" + strings.ReplaceAll(ref.ID, "-", "")
}

func (a *NotionAdapter) do(ctx context.Context, method, url string, body any, out any) error {
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
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Notion-Version", notionAPIVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return errors.TransientErr("notion request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.New(errors.CodeAdapterAuth, "notion auth failed")
	case resp.StatusCode == http.StatusNotFound:
		return errors.Newf(errors.CodeAdapterNotFound, "notion page not found: %s", url)
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.TransientErr("notion rate limited", nil)
	case resp.StatusCode >= 500:
		return errors.TransientErr(fmt.Sprintf("notion server error %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(resp.Body)
		return errors.Newf(errors.CodeInternal, "notion error %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
