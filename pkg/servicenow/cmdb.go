package servicenow

import (
	"context"
	"encoding/json"
	"fmt"

	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
	"github.com/svcdesk/caseintake/pkg/models"
)

// GetBusinessContext fetches the live CMDB-derived business context for an
// account, implementing repository.BusinessContextStore.
func (c *Client) GetBusinessContext(ctx context.Context, account string) (*models.BusinessContext, error) {
	body, err := c.do(ctx, "GET", fmt.Sprintf("/api/now/table/cmdb_ci_business_entity/%s", account), nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Result struct {
			AccountName      string   `json:"account_name"`
			ServiceOfferings []string `json:"service_offerings"`
			SupportTier      string   `json:"support_tier"`
			ExecutiveSponsor string   `json:"executive_sponsor"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, caseerrors.Parse("failed to parse servicenow cmdb response", err)
	}

	return &models.BusinessContext{
		AccountName:      envelope.Result.AccountName,
		ServiceOfferings: envelope.Result.ServiceOfferings,
		SupportTier:      envelope.Result.SupportTier,
		ExecutiveSponsor: envelope.Result.ExecutiveSponsor,
	}, nil
}
