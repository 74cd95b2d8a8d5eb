package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/dadav/ticktick/internal/accounting"
	"github.com/dadav/ticktick/internal/models"
	"github.com/dadav/ticktick/internal/stats"
	"github.com/dadav/ticktick/internal/util"
)

// ExportHandler writes completed sessions as CSV or XLSX downloads.
// An optional from/to date range (YYYY-MM-DD) narrows the export.
type ExportHandler struct {
	Stats *stats.Service
	Cfg   accounting.Config
}

func NewExportHandler(svc *stats.Service, cfg accounting.Config) *ExportHandler {
	return &ExportHandler{Stats: svc, Cfg: cfg}
}

var exportHeaders = []string{"ID", "Date", "Start", "End", "Net Work", "Overtime"}

// ExportCSV streams the sessions as CSV.
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	sessions, ok := h.load(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"sessions_%s.csv\"",
		time.Now().Format("20060102")))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	_ = writer.Write(exportHeaders)
	for _, s := range sessions {
		_ = writer.Write(h.row(s))
	}
}

// ExportXLSX builds an Excel workbook with one row per session.
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	sessions, ok := h.load(c)
	if !ok {
		return
	}

	f := excelize.NewFile()
	sheetName := "Work Sessions"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to create sheet")
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for i, header := range exportHeaders {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}
	for idx, s := range sessions {
		row := idx + 2
		for col, value := range h.row(s) {
			cell := fmt.Sprintf("%c%d", 'A'+col, row)
			f.SetCellValue(sheetName, cell, value)
		}
	}
	f.SetColWidth(sheetName, "A", "A", 6)
	f.SetColWidth(sheetName, "B", "B", 12)
	f.SetColWidth(sheetName, "C", "F", 10)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"sessions_%s.xlsx\"",
		time.Now().Format("20060102")))

	if err := f.Write(c.Writer); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "export failed")
	}
}

func (h *ExportHandler) load(c *gin.Context) ([]models.WorkSession, bool) {
	from, ok := dateParam(c, "from")
	if !ok {
		return nil, false
	}
	to, ok := dateParam(c, "to")
	if !ok {
		return nil, false
	}

	sessions, err := h.Stats.ListCompleted(from, to)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "failed to load sessions")
		return nil, false
	}
	return sessions, true
}

func (h *ExportHandler) row(s models.WorkSession) []string {
	net := 0
	if s.NetSeconds != nil {
		net = *s.NetSeconds
	}
	end := ""
	if s.EndTime != nil {
		end = accounting.FormatClock(*s.EndTime)
	}
	return []string{
		fmt.Sprintf("%d", s.ID),
		s.Date.Format("2006-01-02"),
		accounting.FormatClock(s.StartTime),
		end,
		accounting.FormatDurationShort(net),
		accounting.FormatDurationShort(net - h.Cfg.RequiredDailySeconds()),
	}
}

func dateParam(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		util.Error(c, http.StatusUnprocessableEntity, util.CodeValidation,
			fmt.Sprintf("invalid %s date, want YYYY-MM-DD", name))
		return time.Time{}, false
	}
	return parsed, true
}
