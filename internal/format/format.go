// Package format renders ordered record sequences into the byte layouts
// downstream models consume. Each layout is a versioned contract: a change
// to one is a new formatter name, never an in-place edit.
package format

import (
	"github.com/43ravens/ECget/internal/domain"
)

var (
	_ domain.Formatter = (*SOGDaily)(nil)
	_ domain.Formatter = (*SOGHourly)(nil)
	_ domain.Formatter = (*SOGWindHourly)(nil)
	_ domain.Formatter = (*CSV)(nil)
)

// checkRequired reports the required variables the record set does not
// cover. Formatters call this before rendering so a gap fails whole
// rather than producing a partial file.
func checkRequired(name string, records []domain.Record, required []domain.Variable) error {
	present := map[domain.Variable]bool{}
	for _, r := range records {
		present[r.Variable] = true
	}
	var missing []domain.Variable
	for _, v := range required {
		if !present[v] {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return &domain.MissingVariableError{Formatter: name, Missing: missing}
	}
	return nil
}
