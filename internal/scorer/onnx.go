package scorer

import (
	"sync"

	"github.com/rotisserie/eris"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/evd-tools/eve/internal/config"
)

var ortInit sync.Once

// ONNXModel runs a trained classifier exported to ONNX via the onnxruntime
// shared library. One session is created per run and must be closed.
type ONNXModel struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
}

// NewONNXModel initializes the onnxruntime environment (once per process)
// and opens a session over the configured model file.
func NewONNXModel(cfg config.ScorerConfig) (*ONNXModel, error) {
	if cfg.ModelPath == "" {
		return nil, eris.New("scorer: model path is not configured")
	}

	var initErr error
	ortInit.Do(func() {
		if cfg.OrtLibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.OrtLibraryPath)
		}
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, eris.Wrap(initErr, "scorer: initialize onnxruntime")
	}
	if !ort.IsInitialized() {
		return nil, eris.New("scorer: onnxruntime environment is not initialized")
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName}, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: open model %s", cfg.ModelPath)
	}

	return &ONNXModel{
		session:    session,
		inputName:  cfg.InputName,
		outputName: cfg.OutputName,
	}, nil
}

// Predict runs a single feature vector through the model and returns the
// first output value as the confidence.
func (m *ONNXModel) Predict(features []float32) (float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return 0, eris.New("scorer: model is closed")
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(len(features))), features)
	if err != nil {
		return 0, eris.Wrap(err, "scorer: build input tensor")
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := m.session.Run([]ort.Value{input}, outputs); err != nil {
		return 0, eris.Wrap(err, "scorer: run model")
	}
	defer outputs[0].Destroy()

	probs, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return 0, eris.Errorf("scorer: model output %s is not float32", m.outputName)
	}

	data := probs.GetData()
	if len(data) == 0 {
		return 0, eris.Errorf("scorer: model output %s is empty", m.outputName)
	}

	return data[0], nil
}

// Close releases the session. The process-wide environment stays up; other
// runs in the same process may still need it.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	if err != nil {
		return eris.Wrap(err, "scorer: destroy session")
	}
	return nil
}
