package dashboard

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

var cellAddressRe = regexp.MustCompile(cellAddressPattern)

// ValidateCellAddress accepts a single A1-style cell, optionally absolute.
func ValidateCellAddress(addr string) error {
	if !cellAddressRe.MatchString(addr) {
		return fmt.Errorf("%w: %q", ErrInvalidCellAddress, addr)
	}
	if _, _, err := excelize.CellNameToCoordinates(strings.ReplaceAll(addr, "$", "")); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCellAddress, addr, err)
	}
	return nil
}

// RangeRef is a parsed two-corner range, optionally qualified by a worksheet.
type RangeRef struct {
	Worksheet string
	Start     string
	End       string
}

// ParseRange parses "A1:B5", "Sheet1!A1:B5" or "'My Sheet'!$A$1:$B$5". A
// single cell is treated as a one-cell range.
func ParseRange(ref string) (RangeRef, error) {
	ref = strings.TrimSpace(ref)
	var out RangeRef
	if idx := strings.LastIndex(ref, "!"); idx >= 0 {
		sheet := ref[:idx]
		if len(sheet) >= 2 && strings.HasPrefix(sheet, "'") && strings.HasSuffix(sheet, "'") {
			sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
		}
		out.Worksheet = sheet
		ref = ref[idx+1:]
	}
	start, end, found := strings.Cut(ref, ":")
	if !found {
		end = start
	}
	for _, corner := range []string{start, end} {
		if err := ValidateCellAddress(corner); err != nil {
			return RangeRef{}, fmt.Errorf("%w: %q", ErrInvalidRange, ref)
		}
	}
	out.Start = strings.ReplaceAll(start, "$", "")
	out.End = strings.ReplaceAll(end, "$", "")
	return out, nil
}

// Coordinates returns the 1-based corners normalized to top-left and bottom-right.
func (r RangeRef) Coordinates() (col1, row1, col2, row2 int, err error) {
	col1, row1, err = excelize.CellNameToCoordinates(r.Start)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	col2, row2, err = excelize.CellNameToCoordinates(r.End)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	return min(col1, col2), min(row1, row2), max(col1, col2), max(row1, row2), nil
}

// Address renders the range without the worksheet qualifier.
func (r RangeRef) Address() string {
	if r.Start == r.End {
		return r.Start
	}
	return r.Start + ":" + r.End
}

func (r RangeRef) String() string {
	if r.Worksheet == "" {
		return r.Address()
	}
	sheet := r.Worksheet
	if strings.ContainsAny(sheet, " '!") {
		sheet = "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	}
	return sheet + "!" + r.Address()
}
