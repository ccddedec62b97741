package servicenow

import (
	"context"
	"encoding/json"
	"fmt"

	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
	"github.com/svcdesk/caseintake/pkg/models"
)

// GetCase fetches the live case record, implementing repository.CaseStore.
func (c *Client) GetCase(ctx context.Context, caseID string) (*models.Case, error) {
	body, err := c.do(ctx, "GET", fmt.Sprintf("/api/now/table/case/%s", caseID), nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Result models.Case `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, caseerrors.Parse("failed to parse servicenow case response", err)
	}
	return &envelope.Result, nil
}
