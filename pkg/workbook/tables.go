package workbook

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// TableRows returns the rows of the first table on worksheet, header row
// included. Sheets without a table fall back to their used range.
func (a *Accessor) TableRows(ctx context.Context, worksheet string) ([][]any, error) {
	a.mu.Lock()
	if err := a.checkSheet(worksheet); err != nil {
		a.mu.Unlock()
		return nil, err
	}
	tables, err := a.file.GetTables(worksheet)
	if err != nil {
		a.mu.Unlock()
		return nil, fmt.Errorf("workbook: list tables on %s: %w", worksheet, err)
	}
	var address string
	if len(tables) > 0 {
		address = tables[0].Range
	} else {
		address, err = a.usedRange(worksheet)
	}
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if address == "" {
		return nil, fmt.Errorf("workbook: %s has no table", worksheet)
	}
	return a.ReadRange(ctx, worksheet, address)
}

// usedRange spans A1 to the last populated row and widest column.
func (a *Accessor) usedRange(worksheet string) (string, error) {
	rows, err := a.file.GetRows(worksheet)
	if err != nil {
		return "", fmt.Errorf("workbook: rows of %s: %w", worksheet, err)
	}
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	if len(rows) == 0 || width == 0 {
		return "", nil
	}
	end, err := excelize.CoordinatesToCellName(width, len(rows))
	if err != nil {
		return "", err
	}
	return "A1:" + end, nil
}
