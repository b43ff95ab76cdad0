package merge

import (
	"fmt"
	"strings"

	"github.com/partdex/partdex/internal/pkg/utils/errors"
)

// ValidationError marks an observed record that cannot enter the merge engine.
// In batch mode the record is skipped, one bad record never aborts the batch.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid observed record: " + e.Reason
}

func IsValidationError(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IdentityConflictError is raised by the strict single-entity merge path
// when the incoming record matches more than one distinct existing record,
// automatic absorption is not desired there.
type IdentityConflictError struct {
	RecordIDs []string
}

func (e *IdentityConflictError) Error() string {
	return fmt.Sprintf(
		"identifiers match %d distinct records (%s), refusing to merge automatically",
		len(e.RecordIDs), strings.Join(e.RecordIDs, ", "),
	)
}

func IsIdentityConflict(err error) bool {
	var target *IdentityConflictError
	return errors.As(err, &target)
}
