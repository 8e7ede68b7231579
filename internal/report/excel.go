package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"absensi/internal/attendance"
)

const (
	detailSheet  = "Absensi"
	summarySheet = "Rekap"
)

var (
	detailHeaders  = []string{"Tanggal", "Waktu", "ID Siswa", "Nama", "Status", "Keterangan", "Foto"}
	summaryHeaders = []string{"ID Siswa", "Nama", "HADIR", "IZIN", "SAKIT", "ALFA"}
	statusColumns  = []attendance.Status{attendance.StatusHadir, attendance.StatusIzin, attendance.StatusSakit, attendance.StatusAlfa}
)

// WriteXLSX renders records as a workbook with a detail sheet and a per
// student summary, and writes it to w.
func WriteXLSX(w io.Writer, records []attendance.Record, cal attendance.Calendar) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", detailSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := writeRow(f, detailSheet, 1, toAny(detailHeaders)); err != nil {
		return err
	}
	if err := writeRow(f, summarySheet, 1, toAny(summaryHeaders)); err != nil {
		return err
	}
	_ = f.SetRowStyle(detailSheet, 1, 1, bold)
	_ = f.SetRowStyle(summarySheet, 1, 1, bold)

	type tally struct {
		ref    attendance.StudentRef
		counts map[attendance.Status]int
	}
	tallies := map[string]*tally{}

	for i, rec := range records {
		ref := attendance.StudentRef{ID: rec.StudentID, Name: attendance.DeletedStudentName}
		if rec.Student != nil {
			ref = *rec.Student
		}
		photo := ""
		if rec.PhotoURL != nil {
			photo = *rec.PhotoURL
		}
		local := rec.Timestamp.In(cal.Location())
		clock := local.Format("15:04:05")
		if rec.Status != attendance.StatusHadir {
			clock = "-"
		}
		row := []any{rec.Day, clock, ref.StudentID, ref.Name, string(rec.Status), rec.Remark, photo}
		if err := writeRow(f, detailSheet, i+2, row); err != nil {
			return err
		}

		t, ok := tallies[rec.StudentID]
		if !ok {
			t = &tally{ref: ref, counts: map[attendance.Status]int{}}
			tallies[rec.StudentID] = t
		}
		t.counts[rec.Status]++
	}

	rows := make([]*tally, 0, len(tallies))
	for _, t := range tallies {
		rows = append(rows, t)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ref.Name < rows[j].ref.Name })
	for i, t := range rows {
		row := []any{t.ref.StudentID, t.ref.Name}
		for _, s := range statusColumns {
			row = append(row, t.counts[s])
		}
		if err := writeRow(f, summarySheet, i+2, row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(detailSheet, "A", "B", 12)
	_ = f.SetColWidth(detailSheet, "C", "D", 24)
	_ = f.SetColWidth(summarySheet, "A", "B", 24)

	return f.Write(w)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
