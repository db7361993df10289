// Package policy is the read-only store of refund policy text, keyed by
// taxonomy category. The document is embedded at build time and parsed once.
package policy

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/velora-commerce/refund-agent/agent/contract"
)

//go:embed policy-v1.0.0.md
var policyRaw string

// Categories is the closed set of policy section identifiers, in document
// order. The taxonomy table additionally carries a catch-all "Other" that has
// no policy section.
var Categories = []string{
	"DAMAGED_ITEM",
	"MISSING_ITEM",
	"LATE_DELIVERY",
	"DUPLICATE_CHARGE",
	"CANCELLATION",
	"RETURN_PICKUP_FAILED",
	"RETURN_TO_ORIGIN",
	"PAYMENT_DEBITED_BUT_FAILED",
	"SERVICE_NOT_DELIVERED",
	"PRICE_ADJUSTMENT",
}

type Policy struct {
	Category string
	Title    string
	Content  string
}

type Store struct {
	policies     map[string]Policy
	generalTerms string
}

var (
	sectionSplit    = regexp.MustCompile(`\n---\n\n## (?:\d+\. )?`)
	categoryPattern = regexp.MustCompile(`\(([A-Z_]+)\)`)
)

// NewStore parses the embedded policy document. Safe to share across all
// threads; there is no mutation path.
func NewStore() (*Store, error) {
	return parse(policyRaw)
}

func parse(doc string) (*Store, error) {
	sections := sectionSplit.Split(doc, -1)
	if len(sections) < 2 {
		return nil, fmt.Errorf("%w: policy document has no sections", contract.ErrValidation)
	}

	s := &Store{policies: make(map[string]Policy, len(sections)-1)}

	// The preamble holds the general terms under their own heading.
	if _, terms, ok := strings.Cut(sections[0], "## General Terms"); ok {
		s.generalTerms = strings.TrimSpace(terms)
	}

	for _, section := range sections[1:] {
		lines := strings.SplitN(strings.TrimSpace(section), "\n", 2)
		header := lines[0]

		match := categoryPattern.FindStringSubmatch(header)
		if match == nil {
			continue
		}
		category := match[1]

		title := strings.TrimSpace(categoryPattern.ReplaceAllString(header, ""))
		content := ""
		if len(lines) > 1 {
			content = strings.TrimSpace(lines[1])
		}
		s.policies[category] = Policy{
			Category: category,
			Title:    title,
			Content:  content,
		}
	}

	for _, category := range Categories {
		if _, ok := s.policies[category]; !ok {
			return nil, fmt.Errorf("%w: policy document is missing category %s", contract.ErrValidation, category)
		}
	}
	return s, nil
}

func (s *Store) Get(category string) (Policy, error) {
	p, ok := s.policies[strings.ToUpper(strings.TrimSpace(category))]
	if !ok {
		return Policy{}, fmt.Errorf("%w: policy category %q", contract.ErrNotFound, category)
	}
	return p, nil
}

func (s *Store) GeneralTerms() string {
	return s.generalTerms
}

func (s *Store) ListCategories() []string {
	out := make([]string, len(Categories))
	copy(out, Categories)
	return out
}
