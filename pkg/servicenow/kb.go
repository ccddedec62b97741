package servicenow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
	"github.com/svcdesk/caseintake/pkg/models"
)

// SearchKB searches the live knowledge base, implementing
// repository.KBStore.
func (c *Client) SearchKB(ctx context.Context, query string, limit int) ([]models.KBArticle, error) {
	if limit <= 0 {
		limit = 3
	}

	path := fmt.Sprintf("/api/now/table/kb_knowledge?sysparm_query=textLIKE%s&sysparm_limit=%d",
		url.QueryEscape(query), limit)
	body, err := c.do(ctx, "GET", path, nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Result []struct {
			SysID   string `json:"sys_id"`
			Title   string `json:"short_description"`
			Text    string `json:"text"`
			Number  string `json:"number"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, caseerrors.Parse("failed to parse servicenow kb response", err)
	}

	articles := make([]models.KBArticle, 0, len(envelope.Result))
	for _, r := range envelope.Result {
		articles = append(articles, models.KBArticle{
			ID:      r.SysID,
			Title:   r.Title,
			Snippet: snippet(r.Text, 200),
			URL:     fmt.Sprintf("%s/kb_view.do?sysparm_article=%s", c.baseURL, r.Number),
		})
	}
	return articles, nil
}

func snippet(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "…"
}
