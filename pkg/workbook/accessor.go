// Package workbook implements the dashboard spreadsheet accessor on top of
// an .xlsx file.
package workbook

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/goliatone/go-sheetboard/components/dashboard"
)

// Options configures an Accessor.
type Options struct {
	Logger *zap.Logger
}

// Accessor serves worksheet reads, writes, document properties and change
// notifications from an excelize file. Writes are only persisted by Save.
type Accessor struct {
	mu     sync.Mutex
	file   *excelize.File
	logger *zap.Logger

	subMu   sync.Mutex
	nextSub uint64
	subs    map[uint64]subscriber
}

type subscriber struct {
	worksheet string
	handler   dashboard.SheetChangeHandler
}

var (
	_ dashboard.SpreadsheetAccessor = (*Accessor)(nil)
	_ dashboard.ChartEnumerator     = (*Accessor)(nil)
	_ dashboard.TableReader         = (*Accessor)(nil)
)

// Open reads the workbook at path.
func Open(path string, opts Options) (*Accessor, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("workbook: open %s: %w", path, err)
	}
	return New(f, opts), nil
}

// New wraps an already opened file.
func New(f *excelize.File, opts Options) *Accessor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Accessor{
		file:   f,
		logger: opts.Logger.Named("workbook"),
		subs:   make(map[uint64]subscriber),
	}
}

// Save writes the workbook back to the path it was opened from.
func (a *Accessor) Save() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Save()
}

// SaveAs writes the workbook to path.
func (a *Accessor) SaveAs(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.SaveAs(path)
}

// Close releases the file and drops every subscription.
func (a *Accessor) Close() error {
	a.subMu.Lock()
	clear(a.subs)
	a.subMu.Unlock()
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

func (a *Accessor) WorksheetNames(context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.GetSheetList(), nil
}

// ReadRange returns the values of address on worksheet, row by row. Numbers
// come back as float64, booleans as bool, blanks as nil and everything else
// as string.
func (a *Accessor) ReadRange(_ context.Context, worksheet, address string) ([][]any, error) {
	ref, err := dashboard.ParseRange(address)
	if err != nil {
		return nil, err
	}
	if ref.Worksheet != "" {
		worksheet = ref.Worksheet
	}
	col1, row1, col2, row2, err := ref.Coordinates()
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkSheet(worksheet); err != nil {
		return nil, err
	}
	rows := make([][]any, 0, row2-row1+1)
	for r := row1; r <= row2; r++ {
		row := make([]any, 0, col2-col1+1)
		for c := col1; c <= col2; c++ {
			cell, err := excelize.CoordinatesToCellName(c, r)
			if err != nil {
				return nil, err
			}
			v, err := a.cellValue(worksheet, cell)
			if err != nil {
				return nil, fmt.Errorf("workbook: read %s!%s: %w", worksheet, cell, err)
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCell stores value and notifies the worksheet's subscribers.
func (a *Accessor) WriteCell(ctx context.Context, worksheet, address string, value any) error {
	if err := dashboard.ValidateCellAddress(address); err != nil {
		return err
	}
	cell := strings.ReplaceAll(address, "$", "")

	a.mu.Lock()
	err := a.checkSheet(worksheet)
	if err == nil {
		err = a.file.SetCellValue(worksheet, cell, value)
	}
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("workbook: write %s!%s: %w", worksheet, cell, err)
	}
	a.Notify(ctx, dashboard.SheetChange{Worksheet: worksheet, Address: cell})
	return nil
}

// CustomProperty reads a custom document property as a string.
func (a *Accessor) CustomProperty(_ context.Context, name string) (string, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	props, err := a.file.GetCustomProps()
	if err != nil {
		return "", false, fmt.Errorf("workbook: read custom properties: %w", err)
	}
	for _, p := range props {
		if p.Name == name {
			return fmt.Sprint(p.Value), true, nil
		}
	}
	return "", false, nil
}

// SetCustomProperty creates or replaces a string custom document property.
func (a *Accessor) SetCustomProperty(_ context.Context, name, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.file.SetCustomProps(excelize.CustomProperty{Name: name, Value: value}); err != nil {
		return fmt.Errorf("workbook: set custom property %s: %w", name, err)
	}
	return nil
}

// Subscribe registers handler for changes on worksheet.
func (a *Accessor) Subscribe(_ context.Context, worksheet string, handler dashboard.SheetChangeHandler) (dashboard.Subscription, error) {
	a.mu.Lock()
	err := a.checkSheet(worksheet)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	a.subMu.Lock()
	defer a.subMu.Unlock()
	a.nextSub++
	id := a.nextSub
	a.subs[id] = subscriber{worksheet: worksheet, handler: handler}
	return subscription{accessor: a, id: id}, nil
}

// Notify delivers change to every subscriber of its worksheet. Handlers run
// on the caller's goroutine after all locks are released.
func (a *Accessor) Notify(ctx context.Context, change dashboard.SheetChange) {
	a.subMu.Lock()
	ids := slices.Sorted(maps.Keys(a.subs))
	handlers := make([]dashboard.SheetChangeHandler, 0, len(ids))
	for _, id := range ids {
		if sub := a.subs[id]; sub.worksheet == change.Worksheet {
			handlers = append(handlers, sub.handler)
		}
	}
	a.subMu.Unlock()
	if len(handlers) == 0 {
		return
	}
	a.logger.Debug("sheet changed",
		zap.String("worksheet", change.Worksheet),
		zap.String("address", change.Address),
		zap.Int("subscribers", len(handlers)),
	)
	ctx = context.WithoutCancel(ctx)
	for _, h := range handlers {
		h(ctx, change)
	}
}

func (a *Accessor) subscriberCount() int {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	return len(a.subs)
}

type subscription struct {
	accessor *Accessor
	id       uint64
}

func (s subscription) Unsubscribe() error {
	s.accessor.subMu.Lock()
	defer s.accessor.subMu.Unlock()
	delete(s.accessor.subs, s.id)
	return nil
}

func (a *Accessor) checkSheet(worksheet string) error {
	idx, err := a.file.GetSheetIndex(worksheet)
	if err != nil || idx < 0 {
		return fmt.Errorf("%w: %s", dashboard.ErrWorksheetNotFound, worksheet)
	}
	return nil
}

func (a *Accessor) cellValue(worksheet, cell string) (any, error) {
	raw, err := a.file.GetCellValue(worksheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	typ, err := a.file.GetCellType(worksheet, cell)
	if err != nil {
		return nil, err
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return raw, nil
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}
	return raw, nil
}
