// Package api serves the statement pipeline over HTTP with fiber.
package api

import (
	"errors"
	"strings"

	"statement-ledger/internal/extractor"
	"statement-ledger/internal/models"
	"statement-ledger/internal/parsers"
	"statement-ledger/internal/reconciler"
	"statement-ledger/internal/reporter"
	"statement-ledger/internal/storage"
	ledgererrors "statement-ledger/pkg/errors"
	"statement-ledger/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// ParseRequest is the body of POST /api/v1/statements/parse. Text is split
// on form feeds and appended after Pages.
type ParseRequest struct {
	Text            string   `json:"text"`
	Pages           []string `json:"pages"`
	Year            int      `json:"year"`
	OpeningBalance  *string  `json:"openingBalance"`
	ExpectedIncome  *string  `json:"expectedIncome"`
	ExpectedExpense *string  `json:"expectedExpense"`
	StatementID     string   `json:"statementId"`
	Persist         bool     `json:"persist"`
}

// CorrectionRequest is the body of POST /api/v1/statements/:id/corrections
type CorrectionRequest struct {
	RowID    string `json:"rowId"`
	Category string `json:"category"`
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Handler holds the HTTP handlers for the API
type Handler struct {
	store     storage.Repository
	extractor parsers.ExtractorConfig
	reconcile *reconciler.ReconcileConfig
	aliases   []models.AliasRule
	logger    logger.Logger
}

// NewHandler creates the API handlers. Nil configs use the defaults and a
// nil store keeps rules in memory.
func NewHandler(store storage.Repository, extractorConfig *parsers.ExtractorConfig, reconcileConfig *reconciler.ReconcileConfig, aliases []models.AliasRule) *Handler {
	if store == nil {
		store = storage.NewMemory()
	}
	if extractorConfig == nil {
		extractorConfig = parsers.DefaultExtractorConfig()
	}
	if reconcileConfig == nil {
		reconcileConfig = reconciler.DefaultReconcileConfig()
	}
	return &Handler{
		store:     store,
		extractor: *extractorConfig,
		reconcile: reconcileConfig,
		aliases:   aliases,
		logger:    logger.WithComponent("api"),
	}
}

// NewApp creates a fiber app with the API routes registered
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "ledger",
		ErrorHandler: errorHandler,
		BodyLimit:    16 << 20,
	})
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes
func (h *Handler) RegisterRoutes(app *fiber.App) {
	v1 := app.Group("/api/v1")
	v1.Get("/health", h.HandleHealth)
	v1.Post("/statements/parse", h.HandleParse)
	v1.Get("/statements", h.HandleListStatements)
	v1.Post("/statements/:id/corrections", h.HandleCorrect)
}

// HandleHealth reports liveness and the extractor version
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":           "ok",
		"engine":           "fiber",
		"extractorVersion": parsers.ExtractorVersion,
	})
}

// HandleParse runs the pipeline over statement text in the request body
func (h *Handler) HandleParse(c *fiber.Ctx) error {
	var req ParseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "request body must be JSON")
	}

	pages := append([]string{}, req.Pages...)
	if strings.TrimSpace(req.Text) != "" {
		pages = append(pages, extractor.SplitPages(req.Text)...)
	}
	if len(pages) == 0 {
		return ledgererrors.UsageError(ledgererrors.CodeMissingInput, "text", "")
	}

	declared, err := declaredInputs(&req)
	if err != nil {
		return err
	}

	orchestrator, err := h.orchestrator(req.Year)
	if err != nil {
		return err
	}

	outcome, id, err := orchestrator.Parse(c.UserContext(), &reconciler.ParseRequest{
		Pages:       pages,
		Sources:     []string{"request"},
		Declared:    declared,
		StatementID: req.StatementID,
		Aliases:     h.aliases,
		Persist:     req.Persist,
	})
	if err != nil {
		return err
	}

	h.logger.WithFields(logger.Fields{
		"statement": id,
		"rows":      len(outcome.Rows),
		"persist":   req.Persist,
	}).Info("Parsed statement")

	return c.JSON(reporter.NewDocument(outcome, id, []string{"request"}))
}

// HandleListStatements lists the stored statement snapshot ids
func (h *Handler) HandleListStatements(c *fiber.Ctx) error {
	ids, err := h.store.ListSnapshots(c.UserContext())
	if err != nil {
		return ledgererrors.StorageError(ledgererrors.CodeStoreUnavailable, "statement snapshots", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(fiber.Map{"statements": ids})
}

// HandleCorrect records a category correction for one row of a stored statement
func (h *Handler) HandleCorrect(c *fiber.Ctx) error {
	var req CorrectionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "request body must be JSON")
	}
	if req.RowID == "" {
		return ledgererrors.UsageError(ledgererrors.CodeMissingFlag, "rowId", "")
	}
	if strings.TrimSpace(req.Category) == "" {
		return ledgererrors.UsageError(ledgererrors.CodeMissingFlag, "category", "")
	}

	orchestrator, err := h.orchestrator(0)
	if err != nil {
		return err
	}

	id := c.Params("id")
	outcome, correction, err := orchestrator.Correct(c.UserContext(), id, req.RowID, req.Category, h.aliases...)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"learned":  correction.Learned,
		"document": reporter.NewDocument(outcome, id, nil),
	})
}

func (h *Handler) orchestrator(year int) (*reconciler.Orchestrator, error) {
	config := h.extractor
	if year != 0 {
		config.Year = year
	}
	if err := config.Validate(); err != nil {
		return nil, ledgererrors.UsageError(ledgererrors.CodeInvalidFlag, "year", year)
	}
	service, err := reconciler.NewService(&config, h.reconcile)
	if err != nil {
		return nil, ledgererrors.ConfigurationError(ledgererrors.CodeInvalidConfig, "reconcile", h.reconcile, err)
	}
	return reconciler.NewOrchestrator(service, h.store)
}

func declaredInputs(req *ParseRequest) (models.DeclaredInputs, error) {
	declared := models.DeclaredInputs{Year: req.Year}
	fields := []struct {
		name  string
		value *string
		dest  **decimal.Decimal
	}{
		{"openingBalance", req.OpeningBalance, &declared.OpeningBalance},
		{"expectedIncome", req.ExpectedIncome, &declared.ExpectedIncome},
		{"expectedExpense", req.ExpectedExpense, &declared.ExpectedExpense},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		amount, err := models.ParseAmount(*f.value)
		if err != nil {
			return declared, ledgererrors.UsageError(ledgererrors.CodeInvalidFlag, f.name, *f.value)
		}
		*f.dest = &amount
	}
	return declared, nil
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	resp := ErrorResponse{Error: err.Error()}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
		resp.Error = fiberErr.Message
	} else if le, ok := ledgererrors.AsLedgerError(err); ok {
		status = statusFor(le)
		resp.Error = le.Message
		resp.Code = string(le.Code)
		resp.Suggestion = le.Suggestion
	}

	if status >= fiber.StatusInternalServerError {
		logger.WithComponent("api").WithError(err).Error("Request failed")
	}
	return c.Status(status).JSON(resp)
}

func statusFor(err *ledgererrors.LedgerError) int {
	switch {
	case err.Code == ledgererrors.CodeSnapshotNotFound:
		return fiber.StatusNotFound
	case err.Category == ledgererrors.CategoryUsage, err.Category == ledgererrors.CategoryParse:
		return fiber.StatusBadRequest
	case err.Category == ledgererrors.CategoryStorage:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
