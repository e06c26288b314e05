package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"expenselog/internal/core"
	"expenselog/internal/log"
	"expenselog/internal/middleware/trace"
	"expenselog/internal/report"
	"expenselog/internal/rollup"
	"expenselog/internal/services"
	"expenselog/internal/store"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	})
}

// handleReady reports whether templates loaded and the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.svc.Ready(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if stats, ok := s.cacheStats(); ok {
		checks["cache"] = map[string]any{"entries": stats.Size, "hits": stats.Hits, "misses": stats.Misses}
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.ActiveClients()}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_response_time_avg_microseconds", "gauge", "Average response time", traceMetrics.AverageResponseTime)
	metric("records_saved_total", "counter", "Records written through the form and table editor", atomic.LoadInt64(&s.appMetrics.savedRecords))
	metric("mirror_sync_warnings_total", "counter", "Writes whose remote mirror update failed", atomic.LoadInt64(&s.appMetrics.syncWarnings))
	if stats, ok := s.cacheStats(); ok {
		metric("cache_hits_total", "counter", "Snapshot cache hits", stats.Hits)
		metric("cache_misses_total", "counter", "Snapshot cache misses", stats.Misses)
		metric("cache_entries", "gauge", "Snapshot cache entries", stats.Size)
	}
	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.appMetrics.uptime).Seconds()))
}

func (s *Server) categoriesOrDefault(ctx context.Context) ([]string, string) {
	cats, err := s.svc.Categories(ctx)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Category list failed", log.FieldError, err)
		return core.DefaultCategories(), "Could not load categories, showing the defaults"
	}
	return cats, ""
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	cats, warning := s.categoriesOrDefault(r.Context())
	rows := ParseRowCount(r.URL.Query(), "rows", s.formRows)
	s.render(w, r, "index.html", pageView{
		Title: "Expense log",
		Form:  s.newFormView(rows, cats, warning),
	})
}

// handleForm re-renders the entry form with a different number of lines.
func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	cats, warning := s.categoriesOrDefault(r.Context())
	rows := ParseRowCount(r.URL.Query(), "rows", s.formRows)
	s.render(w, r, "form.html", s.newFormView(rows, cats, warning))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}

	date, err := ParseEntryDate(r.Form, s.today())
	if err != nil {
		UnprocessableEntityError("Invalid date, use YYYY-MM-DD").Write(w)
		return
	}

	res, err := s.svc.Submit(ctx, date, ParseLines(r.Form))
	switch {
	case errors.Is(err, core.ErrNoValidRecords):
		UnprocessableEntityError("Nothing to save: each line needs a description and an amount greater than zero").Write(w)
		return
	case err != nil:
		logger.ErrorContext(ctx, "Failed to save expenses",
			log.FieldComponent, log.ComponentExpense,
			log.FieldOperation, log.OpSubmit,
			log.FieldError, err)
		InternalServerError("Error saving expenses").
			TriggerErrorNotification("Error saving expenses").
			Write(w)
		return
	}

	s.writeResult(w, r, res, log.OpSubmit).TriggerFormReset().Write(w)
}

// writeResult logs and counts a successful write and starts the response.
// A mirror failure turns the success into a warning.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, res services.Result, op string) *HTMXResponseBuilder {
	ctx := r.Context()
	atomic.AddInt64(&s.appMetrics.savedRecords, int64(res.Saved))

	fields := log.NewFields().
		WithComponent(log.ComponentExpense).
		WithOperation(op).
		WithWrite(res.Saved, res.Dropped, res.Total)
	log.FromContext(ctx).InfoContext(ctx, "Records saved", fields.ToSlice()...)

	msg := writeMessage(res)
	if op == log.OpSaveTable {
		msg = tableMessage(res)
	}
	resp := NewHTMXResponse().TriggerRecordsChanged(res.Saved, res.Total)
	if res.Warning != nil {
		atomic.AddInt64(&s.appMetrics.syncWarnings, 1)
		warn := syncWarning(res.Warning)
		return resp.
			TriggerWarningNotification(warn).
			BodyHTML(messageHTML("success", msg) + messageHTML("warning", warn))
	}
	return resp.
		TriggerSuccessNotification(msg).
		BodyHTML(messageHTML("success", msg))
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view := recordsView{Title: "Edit records"}
	view.Categories, view.Warning = s.categoriesOrDefault(ctx)

	rows, err := s.svc.Rows(ctx)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to load records",
			log.FieldComponent, log.ComponentStorage,
			log.FieldError, err)
		view.LoadFailed = true
		view.Warning = "Could not load records: " + err.Error()
	}
	view.Rows = rows
	for _, row := range rows {
		if _, err := core.ParseRow(row); err != nil {
			view.Skipped++
		}
	}

	blank := ParseRowCount(r.URL.Query(), "blank", 1)
	view.Blank = make([]int, blank)
	view.MoreBlank = clampRows(blank + 1)
	s.render(w, r, "records.html", view)
}

// handleSaveRecords overwrites the whole table with the submitted grid.
func (s *Server) handleSaveRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if resp := ParseFormOrFail(w, r); resp != nil {
		resp.Write(w)
		return
	}

	res, err := s.svc.SaveTable(ctx, ParseTableRows(r.Form))
	var rowErr *services.RowError
	switch {
	case errors.As(err, &rowErr):
		UnprocessableEntityError(fmt.Sprintf("Row %d: %v. Nothing was saved.", rowErr.Index+1, rowErr.Err)).Write(w)
		return
	case err != nil:
		log.FromContext(ctx).ErrorContext(ctx, "Failed to save table",
			log.FieldComponent, log.ComponentExpense,
			log.FieldOperation, log.OpSaveTable,
			log.FieldError, err)
		InternalServerError("Error saving the table").
			TriggerErrorNotification("Error saving the table").
			Write(w)
		return
	}

	s.writeResult(w, r, res, log.OpSaveTable).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	period := services.ParsePeriod(r.URL.Query().Get("period"))
	today := s.today()

	sum, err := s.svc.Summary(ctx, today, period)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Summary failed",
			log.FieldOperation, log.OpSummary,
			log.FieldPeriod, period,
			log.FieldError, err)
		view := newSummaryView(rollup.Summary{Today: today}, period)
		view.Warning = "Could not load records: " + err.Error()
		s.render(w, r, "summary.html", view)
		return
	}
	s.render(w, r, "summary.html", newSummaryView(sum, period))
}

func (s *Server) handleSummaryJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	period := services.ParsePeriod(r.URL.Query().Get("period"))
	sum, err := s.svc.Summary(ctx, s.today(), period)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Summary failed",
			log.FieldOperation, log.OpSummary,
			log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, newSummaryJSON(sum, period))
}

// handleExport streams the records and charts as an xlsx workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	period := services.ParsePeriod(r.URL.Query().Get("period"))
	today := s.today()

	buf, sum, err := s.buildWorkbook(ctx, today, period)
	if err != nil {
		logger.ErrorContext(ctx, "Export failed",
			log.FieldOperation, log.OpExport,
			log.FieldError, err)
		http.Error(w, "export failed, request "+trace.GetRequestID(ctx), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="expenses-%s.xlsx"`, today.MonthKey()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
	logger.InfoContext(ctx, "Workbook exported",
		log.FieldOperation, log.OpExport,
		log.FieldRecords, sum.Records,
		log.FieldSkipped, sum.Skipped)
}

func (s *Server) buildWorkbook(ctx context.Context, today core.Date, period services.Period) (*bytes.Buffer, rollup.Summary, error) {
	rows, err := s.svc.Rows(ctx)
	if err != nil {
		return nil, rollup.Summary{}, err
	}
	sum, err := s.svc.Summary(ctx, today, period)
	if err != nil {
		return nil, rollup.Summary{}, err
	}
	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, rows, sum); err != nil {
		return nil, rollup.Summary{}, err
	}
	return &buf, sum, nil
}

type categoriesView struct {
	Categories []string
	Message    string
	Error      string
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, warning := s.categoriesOrDefault(r.Context())
	s.render(w, r, "categories.html", categoriesView{Categories: cats, Error: warning})
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	name := p.Get("name")

	// Errors land next to the form instead of replacing the list.
	fail := func(b *HTMXResponseBuilder) {
		b.Header("HX-Retarget", "#category-result").Header("HX-Reswap", "innerHTML").Write(w)
	}

	err := s.svc.AddCategory(ctx, name)
	switch {
	case errors.Is(err, core.ErrEmptyCategory):
		fail(UnprocessableEntityError("Category name is required"))
		return
	case errors.Is(err, store.ErrDuplicateCategory):
		fail(ConflictError(fmt.Sprintf("Category %q already exists", core.NormalizeCategory(name))))
		return
	case err != nil:
		log.FromContext(ctx).ErrorContext(ctx, "Failed to add category", log.FieldError, err)
		fail(UnprocessableEntityError(err.Error()))
		return
	}

	if p.IsJSON() {
		w.Header().Set("HX-Trigger", `{"`+EventCategoriesChanged+`":{}}`)
		writeJSON(w, http.StatusCreated, map[string]string{"name": core.NormalizeCategory(name)})
		return
	}
	cats, warning := s.categoriesOrDefault(ctx)
	w.Header().Set("HX-Trigger", `{"`+EventCategoriesChanged+`":{}}`)
	s.render(w, r, "categories.html", categoriesView{
		Categories: cats,
		Message:    "Added " + core.NormalizeCategory(name),
		Error:      warning,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
