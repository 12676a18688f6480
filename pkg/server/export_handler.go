package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/energiemix/energiemix/pkg/export"
	"github.com/energiemix/energiemix/pkg/log"
	"github.com/energiemix/energiemix/pkg/merge"
	"github.com/energiemix/energiemix/pkg/types"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	table, ok := s.sessions.Get(q.Get("session"))
	if !ok {
		writeJSONError(w, "unknown or expired session", http.StatusBadRequest)
		return
	}

	start, end, err := parseDateRange(q.Get("start"), q.Get("end"), table)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	layout := q.Get("layout")
	if layout == "" {
		layout = export.LayoutCombined
	}

	filtered, err := merge.FilterRange(table, start, end)
	if err != nil {
		if errors.Is(err, types.ErrEndBeforeStart) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to filter table", slog.Any("error", err))
		writeJSONError(w, "failed to filter table", http.StatusInternalServerError)
		return
	}
	if len(filtered) == 0 {
		writeJSONError(w, "no rows in the selected range", http.StatusBadRequest)
		return
	}

	data, err := export.Render(filtered, layout)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.Filename(start, end, layout)))
	if _, err := w.Write(data); err != nil {
		panic(http.ErrAbortHandler)
	}
}

// parseDateRange reads the start and end dates, defaulting each missing side
// to the table's own bounds.
func parseDateRange(startStr, endStr string, table types.Table) (time.Time, time.Time, error) {
	min, max := table.Bounds()
	start, end := min, max

	var err error
	if startStr != "" {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
		}
	}
	if endStr != "" {
		end, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
		}
	}
	return start, end, nil
}
