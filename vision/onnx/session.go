//go:build onnx && cgo

// MODUL: onnx/session
// ZWECK: ONNX Runtime Session Management - Erstellen, Konfigurieren, Ausfuehren
// INPUT: Modell-Pfad (.onnx), Session-Optionen, Input-Tensoren
// OUTPUT: Session-Handle, Embeddings als float32 (auch bei fp16 Modellen)
// NEBENEFFEKTE: Alloziert ONNX Runtime Ressourcen, GPU Memory
// ABHAENGIGKEITEN: onnxruntime_go, x448/float16
// HINWEISE: Thread-sicher, Destroy() MUSS aufgerufen werden

package onnx

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/x448/float16"
	ort "github.com/yalue/onnxruntime_go"
)

// ============================================================================
// Runtime Initialisierung (Singleton)
// ============================================================================

var (
	runtimeInitOnce sync.Once
	runtimeInitErr  error
)

// InitRuntime initialisiert die ONNX Runtime einmalig.
func InitRuntime() error {
	runtimeInitOnce.Do(func() {
		runtimeInitErr = ort.InitializeEnvironment()
	})
	return runtimeInitErr
}

// ============================================================================
// Session
// ============================================================================

// Session verwaltet eine ONNX Runtime Inference Session.
type Session struct {
	inner       *ort.DynamicAdvancedSession
	opts        SessionOptions
	inputShape  []int64 // [N, C, H, W] aus der Modelldatei
	outputShape []int64
	inputType   ort.TensorElementDataType
}

// SessionOptions konfiguriert die ONNX Session
type SessionOptions struct {
	InputName  string
	OutputName string
	NumThreads int // Intra-Op Threads (0 = auto)
	UseGPU     bool
}

// CreateSession erstellt eine neue ONNX Inference Session.
func CreateSession(modelPath string, opts SessionOptions) (*Session, error) {
	if err := InitRuntime(); err != nil {
		return nil, fmt.Errorf("runtime init: %w", err)
	}

	sessOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer sessOpts.Destroy()

	if opts.NumThreads > 0 {
		if err := sessOpts.SetIntraOpNumThreads(opts.NumThreads); err != nil {
			return nil, fmt.Errorf("threads setzen: %w", err)
		}
	}

	if opts.UseGPU {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err == nil {
			_ = sessOpts.AppendExecutionProviderCUDA(cudaOpts)
			cudaOpts.Destroy()
		}
		// Bei Fehler: Fallback auf CPU
	}

	inner, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{opts.InputName}, []string{opts.OutputName}, sessOpts)
	if err != nil {
		return nil, fmt.Errorf("session erstellen: %w", err)
	}

	sess := &Session{inner: inner, opts: opts, inputType: ort.TensorElementDataTypeFloat}

	// Shapes und Ausgabetyp aus der Modelldatei lesen
	if inputs, outputs, err := ort.GetInputOutputInfo(modelPath); err == nil {
		for _, info := range inputs {
			if info.Name == opts.InputName && len(info.Dimensions) == 4 {
				sess.inputShape = info.Dimensions
				sess.inputType = info.DataType
			}
		}
		for _, info := range outputs {
			if info.Name == opts.OutputName {
				sess.outputShape = info.Dimensions
			}
		}
	}

	return sess, nil
}

// ImageSize liefert H aus der Input-Shape [N,C,H,W], 0 wenn dynamisch.
func (s *Session) ImageSize() int {
	if len(s.inputShape) == 4 && s.inputShape[2] > 0 {
		return int(s.inputShape[2])
	}
	return 0
}

// EmbeddingDim liefert die letzte Dimension der Output-Shape, 0 wenn dynamisch.
func (s *Session) EmbeddingDim() int {
	if n := len(s.outputShape); n > 0 && s.outputShape[n-1] > 0 {
		return int(s.outputShape[n-1])
	}
	return 0
}

// RunInference fuehrt Inference fuer ein Bild [1,3,size,size] aus.
// Die Ausgabe wird von der Runtime alloziert, fp16 wird nach float32 gewandelt.
func (s *Session) RunInference(input []float32, size int) ([]float32, error) {
	inputTensor, err := makeTensorValue(input, ort.NewShape(1, 3, int64(size), int64(size)), s.inputType)
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 1)
	if err := s.inner.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	defer outputs[0].Destroy()

	return extractFloat32(outputs[0])
}

// makeTensorValue erzeugt einen Input-Tensor im vom Modell erwarteten Typ
func makeTensorValue(data []float32, shape ort.Shape, dtype ort.TensorElementDataType) (ort.Value, error) {
	if dtype == ort.TensorElementDataTypeFloat16 {
		return ort.NewCustomDataTensor(shape, encodeFloat16(data), ort.TensorElementDataTypeFloat16)
	}
	return ort.NewTensor(shape, data)
}

// extractFloat32 liest float32 Daten aus einem Output-Value
func extractFloat32(v ort.Value) ([]float32, error) {
	switch t := v.(type) {
	case *ort.Tensor[float32]:
		return slices.Clone(t.GetData()), nil
	case *ort.CustomDataTensor:
		return decodeFloat16(t.GetData()), nil
	}
	return nil, fmt.Errorf("nicht unterstuetzter output typ %T", v)
}

// encodeFloat16 wandelt float32 in little-endian fp16 Bytes
func encodeFloat16(data []float32) []byte {
	raw := make([]byte, 2*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint16(raw[2*i:], float16.Fromfloat32(v).Bits())
	}
	return raw
}

// decodeFloat16 wandelt little-endian fp16 Bytes in float32
func decodeFloat16(raw []byte) []float32 {
	out := make([]float32, len(raw)/2)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[2*i:])).Float32()
	}
	return out
}

// Destroy gibt alle Session-Ressourcen frei
func (s *Session) Destroy() {
	if s.inner != nil {
		s.inner.Destroy()
		s.inner = nil
	}
}
