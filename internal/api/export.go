package api

import (
	"fmt"
	"net/http"
	"time"

	"jetsflare/internal/models"

	"github.com/xuri/excelize/v2"
)

// handleExportUsers streams the user ledger as an xlsx workbook.
func (s *HTTPServer) handleExportUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context(), models.UserFilter{Limit: 100000})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Users"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"ID", "Nickname", "UUID", "Tier", "Status", "Expires", "Days Left", "Referral Code", "Referred By", "Created"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(sheetName, "A1", lastHeader, headerStyle)

	now := time.Now()
	for i, u := range users {
		row := i + 2
		expires := ""
		if u.ExpiresAt.Valid {
			expires = u.ExpiresAt.Time.Format("2006-01-02 15:04")
		}
		referredBy := ""
		if u.ReferredBy.Valid {
			referredBy = fmt.Sprintf("%d", u.ReferredBy.Int64)
		}
		values := []any{
			u.ID, u.Nickname, u.UUID, u.Tier, u.Status,
			expires, u.DaysLeft(now), u.ReferralCode, referredBy,
			u.CreatedAt.Format("2006-01-02"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 8)
	_ = f.SetColWidth(sheetName, "B", "C", 30)
	_ = f.SetColWidth(sheetName, "D", "J", 16)

	filename := fmt.Sprintf("users_%s.xlsx", now.Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := f.Write(w); err != nil {
		s.logger.Error().Err(err).Msg("xlsx export write failed")
	}
}
