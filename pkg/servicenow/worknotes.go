package servicenow

import (
	"context"
	"fmt"
)

// PostWorkNote appends a work note to the live case, implementing
// repository.WorkNoteWriter.
func (c *Client) PostWorkNote(ctx context.Context, caseID, note string) error {
	_, err := c.do(ctx, "PATCH", fmt.Sprintf("/api/now/table/case/%s", caseID), map[string]string{
		"work_notes": note,
	})
	return err
}
