package contextpack

import (
	"fmt"
	"strings"

	"github.com/svcdesk/caseintake/pkg/models"
)

// Render produces the deterministic shared-context prompt block every
// classification stage prefixes onto its own instructions (spec.md §4.3).
// Section order and wording never depend on map iteration or any other
// non-deterministic source, so the same pack always renders byte-identical
// text — required for the pipeline's retry-with-stricter-reminder step to
// reuse the same context.
func Render(pack *models.ContextPack) string {
	var b strings.Builder

	b.WriteString("## Case\n")
	fmt.Fprintf(&b, "Number: %s\n", pack.Case.Number)
	fmt.Fprintf(&b, "Short description: %s\n", pack.Case.ShortDescription)
	fmt.Fprintf(&b, "Description: %s\n", pack.Case.Description)
	fmt.Fprintf(&b, "Priority: %s, Urgency: %s\n", pack.Case.Priority, pack.Case.Urgency)
	fmt.Fprintf(&b, "Company: %s, Assignment group: %s, Category: %s\n",
		pack.Case.Company, pack.Case.AssignmentGroup, pack.Case.Category)

	if pack.HasBusiness() {
		b.WriteString("\n## Business context\n")
		fmt.Fprintf(&b, "Account: %s (support tier: %s)\n", pack.Business.AccountName, pack.Business.SupportTier)
		if len(pack.Business.ServiceOfferings) > 0 {
			fmt.Fprintf(&b, "Service offerings: %s\n", strings.Join(pack.Business.ServiceOfferings, ", "))
		}
		if pack.Business.ExecutiveSponsor != "" {
			fmt.Fprintf(&b, "Executive sponsor: %s\n", pack.Business.ExecutiveSponsor)
		}
	}

	if pack.HasSimilarCases() {
		b.WriteString("\n## Similar prior cases\n")
		for _, sc := range pack.SimilarCases {
			fmt.Fprintf(&b, "- %s (similarity %.2f): %s -- resolution: %s\n",
				sc.Number, sc.Similarity, sc.Description, sc.Resolution)
		}
	}

	if pack.HasKBArticles() {
		b.WriteString("\n## Knowledge base articles\n")
		for _, a := range pack.KBArticles {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", a.Title, a.Snippet, a.URL)
		}
	}

	if pack.HasExemplars() {
		b.WriteString("\n## Muscle-memory exemplars\n")
		for _, e := range pack.Exemplars {
			fmt.Fprintf(&b, "- case %s, action taken: %s -- outcome: %s (quality %.2f)\n",
				e.CaseNumber, e.ActionTaken, e.Outcome, e.QualityScore)
		}
	}

	return b.String()
}
