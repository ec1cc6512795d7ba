package excel

import (
	"fmt"

	"dosage-management/pkg/errors"
)

type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks that every populated column of the sheet has a slot in a
// schema of the given width. Data is loaded positionally, so a wider sheet
// would shift values into the wrong columns.
func (v *Validator) Validate(sheet *Sheet, width int) error {
	if sheet.LastRow() == 0 {
		return fmt.Errorf("%w: sheet %s is empty", errors.ErrInvalidWorkbook, sheet.Name())
	}

	if sheet.LastColumn() > width {
		return fmt.Errorf("%w: sheet %s has %d columns (last %s) but the schema only defines %d",
			errors.ErrInvalidWorkbook, sheet.Name(), sheet.LastColumn(), ColumnLetters(sheet.LastColumn()), width)
	}

	return nil
}
