package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/velora-commerce/refund-agent/store"
)

//go:embed template/system.txt
var systemRaw string

// Build assembles the system prompt for a dialogue turn. The static template
// is compile-time embedded; the refund taxonomy and the current date are
// appended per call so prompts stay in sync with the database.
func Build(taxonomy []*store.TaxonomyEntry, now time.Time) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(systemRaw))
	b.WriteString("\n")
	for _, entry := range taxonomy {
		fmt.Fprintf(&b, "- %s - %s\n", entry.Reason, entry.Description)
	}
	b.WriteString("- Other - anything that does not fit the categories above\n")
	fmt.Fprintf(&b, "\nToday's date is %s.", now.Format("2006-01-02"))
	return b.String()
}
