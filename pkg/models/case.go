// Package models holds the core domain types shared across pipeline
// components. Entities that are read-through from ServiceNow, or persisted
// in our own stores, carry only ids across package boundaries — cyclic
// references (case ↔ gate ↔ session ↔ escalation) are never resolved via
// embedded pointers, only by looking the id up again through a repository.
package models

import "time"

// Case is the external, read-through ServiceNow case record. The core never
// deletes a Case; it is owned by ServiceNow.
type Case struct {
	ID               string    `json:"sys_id"`
	Number           string    `json:"number"`
	ShortDescription string    `json:"short_description"`
	Description      string    `json:"description"`
	Priority         string    `json:"priority"`
	Urgency          string    `json:"urgency"`
	Company          string    `json:"company"`
	AssignmentGroup  string    `json:"assignment_group"`
	Account          string    `json:"account"`
	Category         string    `json:"category"`
	CreatedAt        time.Time `json:"sys_created_on"`
	UpdatedAt        time.Time `json:"sys_updated_on"`
}

// SimilarCase is a prior case surfaced by historical similarity search
// (short of a muscle-memory exemplar — no embedding/quality metadata).
type SimilarCase struct {
	Number      string  `json:"number"`
	Description string  `json:"description"`
	Resolution  string  `json:"resolution"`
	Similarity  float64 `json:"similarity"`
}

// KBArticle is a knowledge-base article surfaced during context enrichment.
type KBArticle struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	URL      string `json:"url"`
}

// BusinessContext is the resolved business-entity context for a case's
// account/company (CMDB-derived).
type BusinessContext struct {
	AccountName      string   `json:"account_name"`
	ServiceOfferings []string `json:"service_offerings"`
	SupportTier      string   `json:"support_tier"`
	ExecutiveSponsor string   `json:"executive_sponsor,omitempty"`
}
