package tools

import (
	"context"

	"github.com/georgysavva/scany/v2/sqlscan"

	"github.com/foodflow/copilot/src/toolreg"
)

const docSearchTopK = 5

type documentHit struct {
	ID           string `db:"id" json:"id"`
	Title        string `db:"title" json:"title"`
	DocumentType string `db:"document_type" json:"document_type"`
	Excerpt      string `db:"excerpt" json:"excerpt"`
}

// searchDocuments runs a keyword search over the shared document library.
// An absent or empty library degrades to zero hits rather than an error so
// the model can acknowledge the gap and keep answering.
func searchDocuments(ctx context.Context, deps Deps, ec toolreg.ExecContext, query, documentType string) []documentHit {
	pattern := "%" + query + "%"

	var hits []documentHit
	err := sqlscan.Select(ctx, ec.DB, &hits, `
		SELECT id, title, document_type, substr(content, 1, 400) AS excerpt
		FROM documents
		WHERE tenant_id = ?
		  AND (? = 'all' OR document_type = ?)
		  AND (title LIKE ? OR content LIKE ?)
		ORDER BY created_at DESC
		LIMIT ?`,
		ec.TenantID.String(), documentType, documentType, pattern, pattern, docSearchTopK)
	if err != nil {
		deps.Logger.Warn("document search unavailable", "document_type", documentType, "error", err)
		return nil
	}
	return hits
}
