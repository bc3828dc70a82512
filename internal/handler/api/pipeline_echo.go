package api

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"Naly/internal/domain/models"
	domrepo "Naly/internal/domain/repository"
	"Naly/internal/services/causal"
	"Naly/internal/services/chart"
	"Naly/internal/usecase"
	xhttp "Naly/pkg/http"
	xlogger "Naly/pkg/logger"
	"Naly/pkg/util"
)

const defaultMarketWindow = 30 * 24 * time.Hour

type CausalReader interface {
	GetCausalAnalysis(ctx context.Context, eventID string) (*models.CausalAnalysis, error)
}

type NarrativeService interface {
	usecase.NarrativeStage
	AdaptNarrative(ctx context.Context, n *models.IntelligentNarrative, profile models.UserProfile) (*models.IntelligentNarrative, error)
	ValidateNarrative(ctx context.Context, n *models.IntelligentNarrative) (float64, error)
}

type Pipeline interface {
	Run(ctx context.Context, event models.MarketEvent) (*models.PipelineResult, error)
}

type Candles interface {
	GetCandles(ctx context.Context, p usecase.GetCandlesParams) (*usecase.GetCandlesResult, error)
}

// PipelineEchoHandler exposes the analysis stages over HTTP.
type PipelineEchoHandler struct {
	logger     *xlogger.Logger
	data       usecase.MarketData
	causal     usecase.CausalStage
	analyses   CausalReader
	prediction usecase.PredictionStage
	narrative  NarrativeService
	charts     usecase.ChartStage
	pipeline   Pipeline
	candles    Candles
	now        func() time.Time
}

func NewPipelineEchoHandler(
	logger *xlogger.Logger,
	data usecase.MarketData,
	causal usecase.CausalStage,
	analyses CausalReader,
	prediction usecase.PredictionStage,
	narrative NarrativeService,
	charts usecase.ChartStage,
	pipeline Pipeline,
	candles Candles,
) *PipelineEchoHandler {
	return &PipelineEchoHandler{
		logger:     logger.With("http"),
		data:       data,
		causal:     causal,
		analyses:   analyses,
		prediction: prediction,
		narrative:  narrative,
		charts:     charts,
		pipeline:   pipeline,
		candles:    candles,
		now:        time.Now,
	}
}

func (h *PipelineEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/causal", h.AnalyzeEvent)
	g.GET("/causal/:eventId", h.GetCausalAnalysis)
	g.POST("/predictions", h.GeneratePrediction)
	g.POST("/narratives", h.GenerateNarrative)
	g.POST("/narratives/adapt", h.AdaptNarrative)
	g.POST("/narratives/validate", h.ValidateNarrative)
	g.POST("/visualizations", h.GenerateVisualization)
	g.POST("/dashboards", h.CreateDashboard)
	g.POST("/pipeline", h.RunPipeline)
	g.GET("/market-data", h.MarketData)
	g.GET("/candles", h.Candles)
}

func (h *PipelineEchoHandler) AnalyzeEvent(c echo.Context) error {
	req := &models.CausalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.causal.AnalyzeEvent(c.Request().Context(), req.Event.ToEvent())
	if err != nil {
		return h.fail(c, "causal", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// GetCausalAnalysis returns the stored analysis in its summary form.
func (h *PipelineEchoHandler) GetCausalAnalysis(c echo.Context) error {
	id := c.Param("eventId")
	res, err := h.analyses.GetCausalAnalysis(c.Request().Context(), id)
	if errors.Is(err, domrepo.ErrNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no causal analysis for event %s", id))
	}
	if err != nil {
		return h.fail(c, "causal_get", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, causal.FormatCausalAnalysis(res))
}

func (h *PipelineEchoHandler) GeneratePrediction(c echo.Context) error {
	req := &models.PredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.prediction.GeneratePrediction(c.Request().Context(), req.Event.ToEvent(), models.PredictionContext{CausalAnalysis: req.CausalAnalysis})
	if err != nil {
		return h.fail(c, "prediction", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineEchoHandler) GenerateNarrative(c echo.Context) error {
	req := &models.NarrativeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.narrative.GenerateNarrative(c.Request().Context(), req.Event.ToEvent(), req.CausalAnalysis, req.Prediction)
	if err != nil {
		return h.fail(c, "narrative", err)
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *PipelineEchoHandler) AdaptNarrative(c echo.Context) error {
	req := &models.AdaptNarrativeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.narrative.AdaptNarrative(c.Request().Context(), req.Narrative, req.Profile)
	if err != nil {
		return h.fail(c, "narrative_adapt", err)
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *PipelineEchoHandler) ValidateNarrative(c echo.Context) error {
	req := &models.ValidateNarrativeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	score, err := h.narrative.ValidateNarrative(c.Request().Context(), req.Narrative)
	if err != nil {
		return h.fail(c, "narrative_validate", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"narrativeId":  req.Narrative.ID,
		"qualityScore": score,
		"status":       req.Narrative.Status,
	})
}

func (h *PipelineEchoHandler) GenerateVisualization(c echo.Context) error {
	req := &models.VisualizationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	cfg := chart.DefaultConfiguration()
	cfg.Width, cfg.Height, cfg.Theme = req.Width, req.Height, req.Theme

	in := chart.Input{
		Points:     req.Points,
		OHLC:       req.Candles,
		Categories: req.Categories,
		Prediction: req.Prediction,
		Causal:     req.Causal,
	}
	res, err := h.charts.GenerateVisualization(c.Request().Context(), in, req.Type, &cfg)
	if err != nil {
		return h.fail(c, "visualization", err)
	}
	if req.Title != "" {
		res.Title = req.Title
	}
	if req.Description != "" {
		res.Description = req.Description
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *PipelineEchoHandler) CreateDashboard(c echo.Context) error {
	req := &models.DashboardRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.charts.CreateDashboard(c.Request().Context(), req.Visualizations)
	if err != nil {
		return h.fail(c, "dashboard", err)
	}
	return xhttp.CreatedResponse(c, res)
}

func (h *PipelineEchoHandler) RunPipeline(c echo.Context) error {
	req := &models.PipelineRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.pipeline.Run(c.Request().Context(), req.Event.ToEvent())
	if err != nil {
		return h.fail(c, "pipeline", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PipelineEchoHandler) MarketData(c echo.Context) error {
	req := &models.MarketDataQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to := h.window(req.From, req.To)

	var types []models.DataType
	for _, t := range util.SplitCSV(req.Types) {
		types = append(types, models.DataType(t))
	}
	res, err := h.data.GetMarketData(c.Request().Context(), models.MarketDataRequest{
		Ticker:    req.Ticker,
		DataTypes: types,
		StartDate: from,
		EndDate:   to,
		Frequency: models.NormalizeFrequency(req.Frequency),
	})
	if err != nil {
		return h.fail(c, "market_data", err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *PipelineEchoHandler) Candles(c echo.Context) error {
	req := &models.CandlesQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to := h.window(req.From, req.To)
	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Ticker:    req.Ticker,
		From:      from,
		To:        to,
		Frequency: models.NormalizeFrequency(req.Frequency),
		Limit:     req.Limit,
	})
	if err != nil {
		return h.fail(c, "candles", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// window parses from/to, defaulting to the last 30 days.
func (h *PipelineEchoHandler) window(fromS, toS string) (time.Time, time.Time) {
	to := util.ParseTimeDefault(toS, h.now().UTC())
	from := util.ParseTimeDefault(fromS, to.Add(-defaultMarketWindow))
	return from, to
}

func (h *PipelineEchoHandler) fail(c echo.Context, op string, err error) error {
	h.logger.Error(op+" request failed", xlogger.String("path", c.Path()), xlogger.Error(err))
	return xhttp.DomainErrorResponse(c, err)
}
