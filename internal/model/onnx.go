package model

import (
	"context"
	"fmt"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/plant-disease-api/internal/errors"
	"github.com/Brownie44l1/plant-disease-api/internal/imageproc"
)

// onnxClassifier runs an ONNX Runtime session with pre-bound tensors.
// The tensors are shared buffers, so Predict is serialized.
type onnxClassifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	numClasses   int
}

func newONNX(cfg Config) (*onnxClassifier, error) {
	start := time.Now()

	if cfg.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, modelInitError(fmt.Errorf("failed to initialize ONNX environment: %w", err), cfg)
		}
	}

	inputName, outputName, err := resolveTensorNames(cfg)
	if err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.InputShape...))
	if err != nil {
		return nil, modelInitError(fmt.Errorf("failed to create input tensor: %w", err), cfg)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.NumClasses)))
	if err != nil {
		inputTensor.Destroy()
		return nil, modelInitError(fmt.Errorf("failed to create output tensor: %w", err), cfg)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, modelInitError(fmt.Errorf("failed to create session options: %w", err), cfg)
	}
	defer options.Destroy()

	if cfg.Threads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.Threads); err != nil {
			inputTensor.Destroy()
			outputTensor.Destroy()
			return nil, modelInitError(fmt.Errorf("failed to set thread count: %w", err), cfg)
		}
	}

	session, err := ort.NewAdvancedSession(cfg.Path,
		[]string{inputName}, []string{outputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.New(fmt.Errorf("failed to create ONNX session: %w", err)).
			Component("model").
			Category(errors.CategoryModelLoad).
			Context("path", cfg.Path).
			Context("input", inputName).
			Context("output", outputName).
			Timing("model-load", time.Since(start)).
			Build()
	}

	return &onnxClassifier{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		numClasses:   cfg.NumClasses,
	}, nil
}

// resolveTensorNames fills in missing input/output names from the model file
// and checks the declared input shape and output width against cfg.
func resolveTensorNames(cfg Config) (string, string, error) {
	inputName, outputName := cfg.InputName, cfg.OutputName

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.Path)
	if err != nil {
		return "", "", errors.New(fmt.Errorf("failed to inspect ONNX model: %w", err)).
			Component("model").
			Category(errors.CategoryModelLoad).
			Context("path", cfg.Path).
			Build()
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return "", "", modelInitError(fmt.Errorf("model declares no inputs or outputs"), cfg)
	}

	if inputName == "" {
		inputName = inputs[0].Name
	}
	if outputName == "" {
		outputName = outputs[0].Name
	}

	inputFound := false
	for _, in := range inputs {
		if in.Name != inputName {
			continue
		}
		inputFound = true
		if !shapeCompatible(in.Dimensions, cfg.InputShape) {
			return "", "", modelInitError(
				fmt.Errorf("model input %q expects shape %v, preprocessing produces %v", inputName, []int64(in.Dimensions), cfg.InputShape), cfg)
		}
	}
	if !inputFound {
		return "", "", modelInitError(fmt.Errorf("model has no input named %q", inputName), cfg)
	}

	for _, out := range outputs {
		if out.Name != outputName {
			continue
		}
		dims := out.Dimensions
		if len(dims) > 0 {
			if last := dims[len(dims)-1]; last > 0 && last != int64(cfg.NumClasses) {
				return "", "", modelInitError(
					fmt.Errorf("model output %q has %d classes, class index file has %d", outputName, last, cfg.NumClasses), cfg)
			}
		}
	}

	return inputName, outputName, nil
}

func modelInitError(err error, cfg Config) error {
	return errors.New(err).
		Component("model").
		Category(errors.CategoryModelInit).
		Context("path", cfg.Path).
		Build()
}

func (m *onnxClassifier) Predict(ctx context.Context, t *imageproc.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, closedError()
	}
	inputData := m.inputTensor.GetData()
	if err := checkInput(t, len(inputData)); err != nil {
		return nil, err
	}
	copy(inputData, t.Data)

	if err := m.session.Run(); err != nil {
		return nil, errors.New(fmt.Errorf("inference failed: %w", err)).
			Component("model").
			Category(errors.CategoryInference).
			Build()
	}

	outputData := m.outputTensor.GetData()
	scores := make([]float32, len(outputData))
	copy(scores, outputData)
	return scores, nil
}

func (m *onnxClassifier) NumClasses() int {
	return m.numClasses
}

func (m *onnxClassifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	if m.inputTensor != nil {
		m.inputTensor.Destroy()
		m.inputTensor = nil
	}
	if m.outputTensor != nil {
		m.outputTensor.Destroy()
		m.outputTensor = nil
	}
	return ort.DestroyEnvironment()
}
