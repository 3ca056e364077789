package reporthttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/ledgerline/internal/debts"
	"github.com/odyssey-erp/ledgerline/internal/payroll"
	"github.com/odyssey-erp/ledgerline/internal/platform/httpx"
	"github.com/odyssey-erp/ledgerline/internal/pnl"
	"github.com/odyssey-erp/ledgerline/internal/reports"
	"github.com/odyssey-erp/ledgerline/internal/reports/export"
)

const (
	monthLayout       = "2006-01"
	dateLayout        = "2006-01-02"
	trendWindowMonths = 6
	requestTimeout    = 5 * time.Second
)

// ReportService is the report contract consumed by the handler.
type ReportService interface {
	ProfitAndLoss(ctx context.Context, filter reports.PLFilter) (pnl.Report, error)
	Salaries(ctx context.Context, filter reports.SalaryFilter) ([]payroll.Summary, error)
	Debts(ctx context.Context, filter reports.DebtFilter) (debts.Report, error)
}

// Handler serves the report endpoints.
type Handler struct {
	logger    *slog.Logger
	service   ReportService
	validator *validator.Validate
	csvPool   sync.Pool
	now       func() time.Time
}

// NewHandler constructs the report HTTP handler.
func NewHandler(logger *slog.Logger, service ReportService) *Handler {
	h := &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		now:       time.Now,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

type pnlQuery struct {
	CompanyID string `validate:"required,numeric"`
	From      string `validate:"omitempty,datetime=2006-01"`
	To        string `validate:"omitempty,datetime=2006-01"`
}

type salaryQuery struct {
	CompanyID string `validate:"required,numeric"`
	AsOf      string `validate:"omitempty,datetime=2006-01-02"`
}

type debtQuery struct {
	CompanyID string `validate:"required,numeric"`
	AsOf      string `validate:"omitempty,datetime=2006-01-02"`
	Side      string `validate:"omitempty,oneof=payable receivable"`
}

type dashboardQuery struct {
	CompanyID string `validate:"required,numeric"`
	Period    string `validate:"omitempty,datetime=2006-01"`
}

// DashboardResponse bundles the three reports for one period.
type DashboardResponse struct {
	Period   string            `json:"period"`
	AsOf     time.Time         `json:"as_of"`
	PL       pnl.Report        `json:"pnl"`
	Salaries []payroll.Summary `json:"salaries"`
	Debts    debts.Report      `json:"debts"`
}

func (h *Handler) handlePL(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parsePL(r)
	if err != nil {
		h.respondError(w, "parse pnl filter", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report, err := h.service.ProfitAndLoss(ctx, filter)
	if err != nil {
		h.respondError(w, "load pnl", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handlePLCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parsePL(r)
	if err != nil {
		h.respondError(w, "parse pnl filter", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report, err := h.service.ProfitAndLoss(ctx, filter)
	if err != nil {
		h.respondError(w, "load pnl", err)
		return
	}
	filename := fmt.Sprintf("pnl-%d-%s-%s.csv", filter.CompanyID, filter.From.Format(monthLayout), filter.To.Format(monthLayout))
	h.streamCSV(w, filename, func(buf *bytes.Buffer) error {
		return export.WritePLCSV(buf, report)
	})
}

func (h *Handler) handleSalaries(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseSalaries(r)
	if err != nil {
		h.respondError(w, "parse salary filter", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	summaries, err := h.service.Salaries(ctx, filter)
	if err != nil {
		h.respondError(w, "load salaries", err)
		return
	}
	if summaries == nil {
		summaries = []payroll.Summary{}
	}
	httpx.JSON(w, http.StatusOK, summaries)
}

func (h *Handler) handleSalariesCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseSalaries(r)
	if err != nil {
		h.respondError(w, "parse salary filter", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	summaries, err := h.service.Salaries(ctx, filter)
	if err != nil {
		h.respondError(w, "load salaries", err)
		return
	}
	filename := fmt.Sprintf("salaries-%d-%s.csv", filter.CompanyID, filter.AsOf.Format(dateLayout))
	h.streamCSV(w, filename, func(buf *bytes.Buffer) error {
		return export.WriteSalaryCSV(buf, summaries)
	})
}

func (h *Handler) handleDebts(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseDebts(r)
	if err != nil {
		h.respondError(w, "parse debt filter", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report, err := h.service.Debts(ctx, filter)
	if err != nil {
		h.respondError(w, "load debts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handleDebtsCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseDebts(r)
	if err != nil {
		h.respondError(w, "parse debt filter", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	report, err := h.service.Debts(ctx, filter)
	if err != nil {
		h.respondError(w, "load debts", err)
		return
	}
	filename := fmt.Sprintf("debts-%d-%s.csv", filter.CompanyID, report.AsOf.Format(dateLayout))
	h.streamCSV(w, filename, func(buf *bytes.Buffer) error {
		return export.WriteDebtsCSV(buf, report)
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := dashboardQuery{
		CompanyID: queryValue(r, "company_id"),
		Period:    queryValue(r, "period"),
	}
	if err := h.validate(q); err != nil {
		h.respondError(w, "parse dashboard filter", err)
		return
	}
	companyID, err := parseCompany(q.CompanyID)
	if err != nil {
		h.respondError(w, "parse dashboard filter", err)
		return
	}
	now := h.now().UTC()
	period := q.Period
	if period == "" {
		period = now.Format(monthLayout)
	}
	base, err := time.Parse(monthLayout, period)
	if err != nil {
		h.respondError(w, "parse dashboard filter", fmt.Errorf("%w: period", httpx.ErrValidation))
		return
	}
	asOf := base.AddDate(0, 1, -1)
	if asOf.After(now) {
		asOf = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	resp := DashboardResponse{Period: period, AsOf: asOf}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		report, err := h.service.ProfitAndLoss(gctx, reports.PLFilter{
			CompanyID: companyID,
			From:      base.AddDate(0, -trendWindowMonths+1, 0),
			To:        base,
		})
		if err != nil {
			return err
		}
		resp.PL = report
		return nil
	})

	g.Go(func() error {
		summaries, err := h.service.Salaries(gctx, reports.SalaryFilter{CompanyID: companyID, AsOf: asOf})
		if err != nil {
			return err
		}
		resp.Salaries = summaries
		return nil
	})

	g.Go(func() error {
		report, err := h.service.Debts(gctx, reports.DebtFilter{CompanyID: companyID, AsOf: asOf})
		if err != nil {
			return err
		}
		resp.Debts = report
		return nil
	})

	if err := g.Wait(); err != nil {
		h.respondError(w, "load dashboard", err)
		return
	}
	if resp.Salaries == nil {
		resp.Salaries = []payroll.Summary{}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) parsePL(r *http.Request) (reports.PLFilter, error) {
	q := pnlQuery{
		CompanyID: queryValue(r, "company_id"),
		From:      queryValue(r, "from"),
		To:        queryValue(r, "to"),
	}
	if err := h.validate(q); err != nil {
		return reports.PLFilter{}, err
	}
	companyID, err := parseCompany(q.CompanyID)
	if err != nil {
		return reports.PLFilter{}, err
	}

	now := h.now().UTC()
	to := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if q.To != "" {
		if to, err = time.Parse(monthLayout, q.To); err != nil {
			return reports.PLFilter{}, fmt.Errorf("%w: to", httpx.ErrValidation)
		}
	}
	from := to.AddDate(0, -trendWindowMonths+1, 0)
	if q.From != "" {
		if from, err = time.Parse(monthLayout, q.From); err != nil {
			return reports.PLFilter{}, fmt.Errorf("%w: from", httpx.ErrValidation)
		}
	}
	if to.Before(from) {
		return reports.PLFilter{}, fmt.Errorf("%w: from must not be after to", httpx.ErrValidation)
	}
	return reports.PLFilter{CompanyID: companyID, From: from, To: to}, nil
}

func (h *Handler) parseDebts(r *http.Request) (reports.DebtFilter, error) {
	q := debtQuery{
		CompanyID: queryValue(r, "company_id"),
		AsOf:      queryValue(r, "as_of"),
		Side:      strings.ToLower(queryValue(r, "side")),
	}
	if err := h.validate(q); err != nil {
		return reports.DebtFilter{}, err
	}
	companyID, err := parseCompany(q.CompanyID)
	if err != nil {
		return reports.DebtFilter{}, err
	}
	asOf, err := h.parseAsOf(q.AsOf)
	if err != nil {
		return reports.DebtFilter{}, err
	}
	return reports.DebtFilter{CompanyID: companyID, AsOf: asOf, Side: debts.Side(q.Side)}, nil
}

func (h *Handler) parseSalaries(r *http.Request) (reports.SalaryFilter, error) {
	q := salaryQuery{
		CompanyID: queryValue(r, "company_id"),
		AsOf:      queryValue(r, "as_of"),
	}
	if err := h.validate(q); err != nil {
		return reports.SalaryFilter{}, err
	}
	companyID, err := parseCompany(q.CompanyID)
	if err != nil {
		return reports.SalaryFilter{}, err
	}
	asOf, err := h.parseAsOf(q.AsOf)
	if err != nil {
		return reports.SalaryFilter{}, err
	}
	return reports.SalaryFilter{CompanyID: companyID, AsOf: asOf}, nil
}

func (h *Handler) parseAsOf(raw string) (time.Time, error) {
	if raw == "" {
		now := h.now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	asOf, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: as_of", httpx.ErrValidation)
	}
	return asOf, nil
}

func (h *Handler) validate(q interface{}) error {
	err := h.validator.Struct(q)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fieldErr := range fieldErrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fieldErr.Field(), fieldErr.Tag()))
		}
		return fmt.Errorf("%w: %s", httpx.ErrValidation, strings.Join(fields, ", "))
	}
	return err
}

func (h *Handler) streamCSV(w http.ResponseWriter, filename string, write func(*bytes.Buffer) error) {
	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := write(buf); err != nil {
		h.respondError(w, "write csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logError("stream csv", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, reports.ErrInvalidFilter) {
		err = fmt.Errorf("%w: %w", httpx.ErrValidation, err)
	}
	if !errors.Is(err, httpx.ErrValidation) {
		h.logError(op, err)
	}
	httpx.RespondError(w, err)
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func parseCompany(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: company_id", httpx.ErrValidation)
	}
	return id, nil
}
