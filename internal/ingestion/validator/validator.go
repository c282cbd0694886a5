// Package validator checks page-visit requests before they are tokenized.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/browsersearch/internal/ingestion"
)

const (
	maxDocumentIDLength = 2048
	maxTermsPerClass    = 10000
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

// ValidatePageRequest checks the document id and that exactly one of html
// or the term lists is present. maxHTMLBytes <= 0 disables the size check.
func ValidatePageRequest(req *ingestion.PageRequest, maxHTMLBytes int) error {
	errs := make(map[string]string)

	id := strings.TrimSpace(req.DocumentID)
	switch {
	case id == "":
		errs["document_id"] = "document_id is required"
	case len(id) > maxDocumentIDLength:
		errs["document_id"] = fmt.Sprintf("document_id must be at most %d characters", maxDocumentIDLength)
	}

	hasTerms := len(req.HeadTerms) > 0 || len(req.BodyTerms) > 0
	switch {
	case req.HTML != "" && hasTerms:
		errs["html"] = "send either html or head_terms/body_terms, not both"
	case req.HTML == "" && !hasTerms:
		errs["html"] = "html or head_terms/body_terms is required"
	case maxHTMLBytes > 0 && len(req.HTML) > maxHTMLBytes:
		errs["html"] = fmt.Sprintf("html must be at most %d bytes", maxHTMLBytes)
	}

	if len(req.HeadTerms) > maxTermsPerClass {
		errs["head_terms"] = fmt.Sprintf("at most %d terms", maxTermsPerClass)
	}
	if len(req.BodyTerms) > maxTermsPerClass {
		errs["body_terms"] = fmt.Sprintf("at most %d terms", maxTermsPerClass)
	}

	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
