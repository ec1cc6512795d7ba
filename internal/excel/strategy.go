package excel

import "strings"

type SheetKind int

const (
	SheetIgnored SheetKind = iota
	SheetPeriodMTH
	SheetPeriodMAT
	SheetDaily
)

const (
	PeriodMTH = "MTH"
	PeriodMAT = "MAT"
	DailyName = "DAILYDOSAGE"
)

func (k SheetKind) String() string {
	switch k {
	case SheetPeriodMTH:
		return PeriodMTH
	case SheetPeriodMAT:
		return PeriodMAT
	case SheetDaily:
		return DailyName
	default:
		return "IGNORED"
	}
}

// IsPeriod reports whether the sheet carries date-indexed column ranges.
func (k SheetKind) IsPeriod() bool {
	return k == SheetPeriodMTH || k == SheetPeriodMAT
}

// Classify maps a sheet name to its kind. Matching ignores case and
// surrounding blanks.
func Classify(sheetName string) SheetKind {
	switch strings.ToUpper(strings.TrimSpace(sheetName)) {
	case PeriodMTH:
		return SheetPeriodMTH
	case PeriodMAT:
		return SheetPeriodMAT
	case DailyName:
		return SheetDaily
	default:
		return SheetIgnored
	}
}
