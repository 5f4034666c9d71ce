package audit

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

var sheetNameReplacer = strings.NewReplacer(
	":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", "(", "]", ")",
)

// ExcelizeWriter implements ExcelWriter using excelize.
type ExcelizeWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
	columns      int
	headerStyle  int
	sheets       map[string]struct{}
}

// NewExcelizeWriter creates a writer over an empty workbook.
func NewExcelizeWriter() ExcelWriter {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		style = 0
	}
	return &ExcelizeWriter{
		file:        f,
		headerStyle: style,
		sheets:      make(map[string]struct{}),
	}
}

// SheetName makes name a legal and unique-friendly Excel sheet title.
func SheetName(name string) string {
	name = strings.TrimSpace(sheetNameReplacer.Replace(name))
	if name == "" {
		name = "Sheet"
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}

// AddSheet adds a sheet; the default "Sheet1" is renamed for the first one.
func (w *ExcelizeWriter) AddSheet(name string) error {
	name = SheetName(name)
	if _, dup := w.sheets[name]; dup {
		return fmt.Errorf("sheet %q already exists", name)
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.sheets[name] = struct{}{}
	w.currentSheet = name
	w.currentRow = 1
	w.columns = 0
	return nil
}

// WriteHeader writes bold column headers and freezes the header row.
func (w *ExcelizeWriter) WriteHeader(columns []string) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	cells := make([]interface{}, len(columns))
	for i, c := range columns {
		cells[i] = c
	}
	if err := w.setRow(cells); err != nil {
		return err
	}

	if w.headerStyle != 0 && len(columns) > 0 {
		first, _ := excelize.CoordinatesToCellName(1, w.currentRow)
		last, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow)
		_ = w.file.SetCellStyle(w.currentSheet, first, last, w.headerStyle)
	}
	_ = w.file.SetPanes(w.currentSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      w.currentRow,
		TopLeftCell: fmt.Sprintf("A%d", w.currentRow+1),
		ActivePane:  "bottomLeft",
	})

	w.columns = len(columns)
	w.currentRow++
	return nil
}

// WriteRow writes a data row to current sheet.
func (w *ExcelizeWriter) WriteRow(row []interface{}) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	if w.columns > 0 && len(row) != w.columns {
		return fmt.Errorf("row has %d cells, header has %d", len(row), w.columns)
	}
	if err := w.setRow(row); err != nil {
		return err
	}
	w.currentRow++
	return nil
}

func (w *ExcelizeWriter) setRow(cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	return w.file.SetSheetRow(w.currentSheet, cell, &cells)
}

func (w *ExcelizeWriter) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

func (w *ExcelizeWriter) SaveToFile(path string) error {
	return w.file.SaveAs(path)
}

// Close releases resources.
func (w *ExcelizeWriter) Close() error {
	return w.file.Close()
}
