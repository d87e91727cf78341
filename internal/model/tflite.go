package model

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/tphakala/go-tflite"

	"github.com/Brownie44l1/plant-disease-api/internal/errors"
	"github.com/Brownie44l1/plant-disease-api/internal/imageproc"
)

// tfliteClassifier runs a TensorFlow Lite interpreter. The interpreter is not
// safe for concurrent use, so Predict holds the lock for the whole call.
type tfliteClassifier struct {
	mu          sync.Mutex
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	inputLen    int
	numClasses  int
}

func newTFLite(cfg Config) (*tfliteClassifier, error) {
	modelData, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to read model: %w", err)).
			Component("model").
			Category(errors.CategoryModelLoad).
			Context("path", cfg.Path).
			Build()
	}

	m := tflite.NewModel(modelData)
	if m == nil {
		return nil, modelInitError(fmt.Errorf("cannot load TensorFlow Lite model"), cfg)
	}

	options := tflite.NewInterpreterOptions()
	if cfg.Threads > 0 {
		options.SetNumThread(cfg.Threads)
	}

	interpreter := tflite.NewInterpreter(m, options)
	if interpreter == nil {
		options.Delete()
		m.Delete()
		return nil, modelInitError(fmt.Errorf("cannot create interpreter"), cfg)
	}

	c := &tfliteClassifier{
		model:       m,
		options:     options,
		interpreter: interpreter,
		numClasses:  cfg.NumClasses,
	}

	if status := interpreter.AllocateTensors(); status != tflite.OK {
		_ = c.Close()
		return nil, modelInitError(fmt.Errorf("tensor allocation failed: %v", status), cfg)
	}

	input := interpreter.GetInputTensor(0)
	if input == nil {
		_ = c.Close()
		return nil, modelInitError(fmt.Errorf("cannot get input tensor"), cfg)
	}
	c.inputLen = len(input.Float32s())
	if want := shapeLen(cfg.InputShape); c.inputLen != want {
		_ = c.Close()
		return nil, modelInitError(fmt.Errorf("model input holds %d values, preprocessing produces %d", c.inputLen, want), cfg)
	}

	output := interpreter.GetOutputTensor(0)
	if output == nil {
		_ = c.Close()
		return nil, modelInitError(fmt.Errorf("cannot get output tensor"), cfg)
	}
	if got := output.Dim(output.NumDims() - 1); got != cfg.NumClasses {
		_ = c.Close()
		return nil, modelInitError(fmt.Errorf("model output has %d classes, class index file has %d", got, cfg.NumClasses), cfg)
	}

	return c, nil
}

func (c *tfliteClassifier) Predict(ctx context.Context, t *imageproc.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkInput(t, c.inputLen); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interpreter == nil {
		return nil, closedError()
	}
	input := c.interpreter.GetInputTensor(0)
	if input == nil {
		return nil, fmt.Errorf("cannot get input tensor")
	}
	copy(input.Float32s(), t.Data)

	if status := c.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.New(fmt.Errorf("tensor invoke failed: %v", status)).
			Component("model").
			Category(errors.CategoryInference).
			Build()
	}

	output := c.interpreter.GetOutputTensor(0)
	scores := make([]float32, output.Dim(output.NumDims()-1))
	copy(scores, output.Float32s())
	return scores, nil
}

func (c *tfliteClassifier) NumClasses() int {
	return c.numClasses
}

func (c *tfliteClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interpreter != nil {
		c.interpreter.Delete()
		c.interpreter = nil
	}
	if c.options != nil {
		c.options.Delete()
		c.options = nil
	}
	if c.model != nil {
		c.model.Delete()
		c.model = nil
	}
	return nil
}
