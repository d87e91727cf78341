package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/plant-disease-api/internal/advisory"
	"github.com/Brownie44l1/plant-disease-api/internal/catalog"
	"github.com/Brownie44l1/plant-disease-api/internal/diagnosis"
	"github.com/Brownie44l1/plant-disease-api/internal/errors"
	"github.com/Brownie44l1/plant-disease-api/internal/imageproc"
	"github.com/Brownie44l1/plant-disease-api/internal/model/mocks"
	"github.com/Brownie44l1/plant-disease-api/internal/observability/metrics"
	"github.com/Brownie44l1/plant-disease-api/internal/upload"
)

// recordingRenderer remembers the last template rendered.
type recordingRenderer struct {
	mu   sync.Mutex
	name string
	data any
}

func (r *recordingRenderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	r.mu.Lock()
	r.name, r.data = name, data
	r.mu.Unlock()
	_, err := fmt.Fprintf(w, "<html>%s</html>", name)
	return err
}

type fixture struct {
	e        *echo.Echo
	h        *Handler
	clf      *mocks.Classifier
	store    *upload.Store
	renderer *recordingRenderer
}

func newFixture(t *testing.T, storeCfg upload.Config) *fixture {
	t.Helper()

	cat, err := catalog.Parse([]byte(`{"Apple___Apple_scab": 0, "Potato___Early_blight": 1}`))
	require.NoError(t, err)

	clf := mocks.NewClassifier(2)
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	svc, err := diagnosis.New(clf, cat, advisory.Default(), imageproc.DefaultOptions(), m)
	require.NoError(t, err)

	if storeCfg.Dir == "" {
		storeCfg.Dir = filepath.Join(t.TempDir(), "uploads")
	}
	store, err := upload.New(storeCfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	e := echo.New()
	r := &recordingRenderer{}
	e.Renderer = r

	return &fixture{
		e:        e,
		h:        New(svc, store, m, nil),
		clf:      clf,
		store:    store,
		renderer: r,
	}
}

func (f *fixture) serve(req *http.Request, handler echo.HandlerFunc) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	if err := handler(c); err != nil {
		f.e.HTTPErrorHandler(err, c)
	}
	return rec
}

func (f *fixture) uploads(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.store.Dir())
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func leafPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: 60, G: 160, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/predict", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestPredictWithoutFileField(t *testing.T) {
	f := newFixture(t, upload.Config{})

	rec := f.serve(multipartRequest(t, "image", "leaf.png", leafPNG(t)), f.h.Predict)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "No file uploaded"}`, rec.Body.String())
	assert.Empty(t, f.uploads(t))
	f.clf.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
}

func TestPredictWithoutMultipartBody(t *testing.T) {
	f := newFixture(t, upload.Config{})

	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("plain"))
	req.Header.Set(echo.HeaderContentType, echo.MIMETextPlain)
	rec := f.serve(req, f.h.Predict)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "No file uploaded"}`, rec.Body.String())
	f.clf.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
}

func TestPredictRendersAppleScabAdvice(t *testing.T) {
	f := newFixture(t, upload.Config{})
	f.clf.On("Predict", mock.Anything, mock.Anything).Return([]float32{0.92, 0.08}, nil).Once()

	rec := f.serve(multipartRequest(t, FileField, "leaf.png", leafPNG(t)), f.h.Predict)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ResultTemplate, f.renderer.name)
	assert.Equal(t, ResultView{
		PlantType:   "Apple",
		DiseaseType: "Apple Scab",
		Precautions: []string{"Prune trees", "Remove debris", "Use resistant varieties"},
		Fertilizers: []string{"Mancozeb", "Captan"},
	}, f.renderer.data)
	assert.Empty(t, f.uploads(t), "upload should be removed after the response")
	f.clf.AssertExpectations(t)
}

func TestPredictReturnsJSONWhenAccepted(t *testing.T) {
	f := newFixture(t, upload.Config{})
	f.clf.On("Predict", mock.Anything, mock.Anything).Return([]float32{0.1, 0.9}, nil)

	req := multipartRequest(t, FileField, "leaf.png", leafPNG(t))
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	rec := f.serve(req, f.h.Predict)

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Potato", got["plant_type"])
	assert.Equal(t, "Early Blight", got["disease_type"])
	assert.Equal(t, []any{"Crop rotation", "Avoid overhead irrigation"}, got["precautions"])
	assert.Equal(t, []any{"Chlorothalonil", "Mancozeb"}, got["fertilizers"])
	assert.Equal(t, "Potato___Early_blight", got["predicted_label"])
	assert.InDelta(t, 0.9, got["confidence"], 1e-6)
}

func TestPredictRejectsUndecodableImage(t *testing.T) {
	f := newFixture(t, upload.Config{})

	rec := f.serve(multipartRequest(t, FileField, "leaf.jpg", []byte("definitely not an image")), f.h.Predict)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error": "Invalid image file"}`, rec.Body.String())
	assert.Empty(t, f.uploads(t))
	f.clf.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
}

func TestPredictInferenceFailure(t *testing.T) {
	f := newFixture(t, upload.Config{})
	f.clf.On("Predict", mock.Anything, mock.Anything).Return(nil, errors.NewStd("session failed"))

	rec := f.serve(multipartRequest(t, FileField, "leaf.png", leafPNG(t)), f.h.Predict)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error": "Prediction failed"}`, rec.Body.String())
	assert.Empty(t, f.uploads(t))
}

func TestPredictInsufficientStorage(t *testing.T) {
	f := newFixture(t, upload.Config{MinFreeBytes: math.MaxUint64})

	rec := f.serve(multipartRequest(t, FileField, "leaf.png", leafPNG(t)), f.h.Predict)

	assert.Equal(t, http.StatusInsufficientStorage, rec.Code)
	assert.JSONEq(t, `{"error": "Insufficient storage"}`, rec.Body.String())
	f.clf.AssertNotCalled(t, "Predict", mock.Anything, mock.Anything)
}

func TestConcurrentDuplicateUploads(t *testing.T) {
	f := newFixture(t, upload.Config{Retention: time.Hour})
	f.clf.On("Predict", mock.Anything, mock.Anything).Return([]float32{0.7, 0.3}, nil)
	img := leafPNG(t)

	const n = 8
	reqs := make([]*http.Request, n)
	for i := range reqs {
		reqs[i] = multipartRequest(t, FileField, "same.png", img)
		reqs[i].Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	}

	codes := make([]int, n)
	bodies := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := f.serve(reqs[i], f.h.Predict)
			codes[i] = rec.Code
			bodies[i] = rec.Body.String()
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, http.StatusOK, codes[i])
		assert.JSONEq(t, bodies[0], bodies[i])
	}
	assert.Len(t, f.uploads(t), n, "each upload must get its own file")
	assert.Equal(t, n, f.store.Pending())
}

func TestResultFromQuery(t *testing.T) {
	f := newFixture(t, upload.Config{})

	req := httptest.NewRequest(http.MethodGet,
		"/result?plant_type=Potato&disease_type=Early+Blight&precautions=Crop+rotation,Avoid+overhead+irrigation&fertilizers=Chlorothalonil,,Mancozeb", nil)
	rec := f.serve(req, f.h.Result)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ResultTemplate, f.renderer.name)
	assert.Equal(t, ResultView{
		PlantType:   "Potato",
		DiseaseType: "Early Blight",
		Precautions: []string{"Crop rotation", "Avoid overhead irrigation"},
		Fertilizers: []string{"Chlorothalonil", "Mancozeb"},
	}, f.renderer.data)
}

func TestIndex(t *testing.T) {
	f := newFixture(t, upload.Config{})

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/", nil), f.h.Index)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, IndexTemplate, f.renderer.name)
	assert.Empty(t, f.uploads(t))
}

func TestHealth(t *testing.T) {
	f := newFixture(t, upload.Config{})

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/health", nil), f.h.Health)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "healthy", "classes": 2}`, rec.Body.String())
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a , ,b,"))
}
