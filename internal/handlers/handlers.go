// Package handlers implements the upload, result and health endpoints.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Brownie44l1/plant-disease-api/internal/advisory"
	"github.com/Brownie44l1/plant-disease-api/internal/diagnosis"
	"github.com/Brownie44l1/plant-disease-api/internal/errors"
	"github.com/Brownie44l1/plant-disease-api/internal/imageproc"
	"github.com/Brownie44l1/plant-disease-api/internal/logger"
	"github.com/Brownie44l1/plant-disease-api/internal/observability/metrics"
	"github.com/Brownie44l1/plant-disease-api/internal/upload"
)

// FileField is the multipart field carrying the image.
const FileField = "file"

// Template names rendered by the handlers.
const (
	IndexTemplate  = "index.html"
	ResultTemplate = "result.html"
)

// Client-facing error messages.
const (
	MsgNoFile              = "No file uploaded"
	MsgInvalidImage        = "Invalid image file"
	MsgInsufficientStorage = "Insufficient storage"
	MsgPredictionFailed    = "Prediction failed"
)

// Prediction outcomes recorded in metrics.
const (
	outcomeSuccess      = "success"
	outcomeNoFile       = "no_file"
	outcomeInvalidImage = "invalid_image"
	outcomeNoStorage    = "insufficient_storage"
	outcomeError        = "error"
)

// Handler serves the web front-end. It holds no per-request state.
type Handler struct {
	diag    *diagnosis.Service
	store   *upload.Store
	metrics *metrics.Metrics
	log     logger.Logger
}

// New returns a Handler. m may be nil.
func New(diag *diagnosis.Service, store *upload.Store, m *metrics.Metrics, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Handler{
		diag:    diag,
		store:   store,
		metrics: m,
		log:     log,
	}
}

// ResultView is the data passed to the result template.
type ResultView struct {
	PlantType   string
	DiseaseType string
	Precautions []string
	Fertilizers []string
}

func newResultView(r advisory.Record) ResultView {
	return ResultView{
		PlantType:   r.PlantType,
		DiseaseType: r.DiseaseType,
		Precautions: r.Precautions,
		Fertilizers: r.Fertilizers,
	}
}

// PredictResponse is the JSON body of a successful prediction.
type PredictResponse struct {
	advisory.Record
	PredictedLabel string  `json:"predicted_label"`
	Confidence     float32 `json:"confidence"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Index renders the upload form.
func (h *Handler) Index(c echo.Context) error {
	return c.Render(http.StatusOK, IndexTemplate, nil)
}

// Health reports liveness and the number of classes the model knows.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "healthy",
		"classes": h.diag.Catalog().Len(),
	})
}

// Predict stores the uploaded image, classifies it and renders the advice.
func (h *Handler) Predict(c echo.Context) error {
	fh, err := c.FormFile(FileField)
	if err != nil {
		h.metrics.RecordPrediction(outcomeNoFile)
		return c.JSON(http.StatusBadRequest, errorResponse{Error: MsgNoFile})
	}

	src, err := fh.Open()
	if err != nil {
		return h.fail(c, http.StatusInternalServerError, outcomeError, MsgPredictionFailed, err)
	}
	defer src.Close()

	path, err := h.store.Save(src)
	if err != nil {
		if errors.Is(err, upload.ErrInsufficientStorage) {
			return h.fail(c, http.StatusInsufficientStorage, outcomeNoStorage, MsgInsufficientStorage, err)
		}
		return h.fail(c, http.StatusInternalServerError, outcomeError, MsgPredictionFailed, err)
	}
	defer h.store.Release(path)
	h.metrics.RecordUpload(fh.Size)

	start := time.Now()
	res, err := h.diag.Diagnose(c.Request().Context(), path)
	if err != nil {
		if imageproc.IsDecodeError(err) {
			return h.fail(c, http.StatusBadRequest, outcomeInvalidImage, MsgInvalidImage, err)
		}
		return h.fail(c, http.StatusInternalServerError, outcomeError, MsgPredictionFailed, err)
	}
	h.metrics.RecordPrediction(outcomeSuccess)

	h.log.Info("Prediction complete",
		logger.String("filename", fh.Filename),
		logger.String("label", res.PredictedLabel),
		logger.Float32("confidence", res.Confidence),
		logger.Bool("known", res.Known),
		logger.Duration("elapsed", time.Since(start)))

	if wantsJSON(c) {
		return c.JSON(http.StatusOK, PredictResponse{
			Record:         res.Advisory,
			PredictedLabel: res.PredictedLabel,
			Confidence:     res.Confidence,
		})
	}
	return c.Render(http.StatusOK, ResultTemplate, newResultView(res.Advisory))
}

// Result renders the result page from query parameters. List parameters are
// comma separated.
func (h *Handler) Result(c echo.Context) error {
	return c.Render(http.StatusOK, ResultTemplate, ResultView{
		PlantType:   c.QueryParam("plant_type"),
		DiseaseType: c.QueryParam("disease_type"),
		Precautions: splitList(c.QueryParam("precautions")),
		Fertilizers: splitList(c.QueryParam("fertilizers")),
	})
}

func (h *Handler) fail(c echo.Context, status int, outcome, msg string, err error) error {
	h.metrics.RecordPrediction(outcome)
	if status >= http.StatusInternalServerError {
		h.log.Error("Prediction request failed", logger.Int("status", status), logger.Error(err))
	} else {
		h.log.Warn("Prediction request rejected", logger.Int("status", status), logger.Error(err))
	}
	return c.JSON(status, errorResponse{Error: msg})
}

func wantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
