package merge

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/partdex/partdex/internal/pkg/model"
)

// sanitize normalizes an observed record before any index lookup.
// It returns a cloned record, the input is never mutated.
func (e *Engine) sanitize(observed *model.HardwareRecord, requireMPN bool) (*model.HardwareRecord, error) {
	record := observed.Clone()
	if record.Type == "" {
		record.Type = model.TypeUnknown
	}
	if record.EANs == nil {
		record.EANs = model.NewIdentifierSet()
	}
	if record.MPNs == nil {
		record.MPNs = model.NewIdentifierSet()
	}

	record.Model = normalizeText(record.Model)
	if record.Model == "" {
		return nil, &ValidationError{Reason: "model must not be blank"}
	}

	if requireMPN && record.MPNs.IsEmpty() {
		return nil, &ValidationError{Reason: "at least one MPN is required"}
	}
	if record.EANs.IsEmpty() && record.MPNs.IsEmpty() {
		return nil, &ValidationError{Reason: "at least one identifier (EAN or MPN) is required"}
	}

	record.Manufacturer = strings.TrimSpace(record.Manufacturer)
	if record.Manufacturer == "" {
		if inferred, found := e.manufacturers.Infer(record.Model); found {
			record.Manufacturer = inferred
		} else {
			return nil, &ValidationError{Reason: `manufacturer is blank and cannot be inferred from model "` + record.Model + `"`}
		}
	}

	// Every accepted manufacturer grows the known set
	e.manufacturers.Add(record.Manufacturer)
	return record, nil
}

// normalizeText applies the NFKC Unicode normalization,
// collapses internal whitespace and trims the text.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(text)), " ")
}
