package ai

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"github.com/Thedurancode/aitickets/internal/metrics"
	"github.com/nfnt/resize"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrDetectorUnavailable means no local face model is configured.
var ErrDetectorUnavailable = errors.New("face detector unavailable")

// FaceDetector counts faces and estimates how much they smile.
type FaceDetector interface {
	Detect(ctx context.Context, imagePath string) (FaceResult, error)
	Close() error
}

// FaceModelConfig describes the exported face/smile model.
//
// The model takes "input" as float32[1,3,S,S] RGB in 0..1 and produces
// "scores" and "smiles", both float32[1,MaxFaces]: a detection confidence
// and a smile probability per face slot.
type FaceModelConfig struct {
	ModelPath     string
	LibraryPath   string
	InputSize     int
	MaxFaces      int
	MinConfidence float64
}

// ONNXFaceDetector runs a face/smile model through onnxruntime.
type ONNXFaceDetector struct {
	logger  zerolog.Logger
	cfg     FaceModelConfig
	session *ort.DynamicAdvancedSession

	// The session is not safe for concurrent Run calls.
	mu sync.Mutex
}

// NewONNXFaceDetector loads the model at cfg.ModelPath. A missing model
// returns ErrDetectorUnavailable so callers can continue without local
// scoring.
func NewONNXFaceDetector(logger zerolog.Logger, cfg FaceModelConfig) (*ONNXFaceDetector, error) {
	if cfg.ModelPath == "" {
		return nil, ErrDetectorUnavailable
	}
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: model file not found: %s", ErrDetectorUnavailable, cfg.ModelPath)
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 320
	}
	if cfg.MaxFaces <= 0 {
		cfg.MaxFaces = 10
	}

	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	inputNames := []string{"input"}
	outputNames := []string{"scores", "smiles"}

	sess, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, outputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create face session: %w", err)
	}

	logger.Info().
		Str("model", cfg.ModelPath).
		Int("input_size", cfg.InputSize).
		Int("max_faces", cfg.MaxFaces).
		Msg("face model loaded")

	return &ONNXFaceDetector{
		logger:  logger.With().Str("scorer", "faces").Logger(),
		cfg:     cfg,
		session: sess,
	}, nil
}

// Detect runs the model on one image.
func (d *ONNXFaceDetector) Detect(ctx context.Context, imagePath string) (FaceResult, error) {
	if err := ctx.Err(); err != nil {
		return FaceResult{}, err
	}

	input, err := d.preprocessImage(imagePath)
	if err != nil {
		metrics.FaceDetections.WithLabelValues("error").Inc()
		return FaceResult{}, fmt.Errorf("image preprocessing failed: %w", err)
	}
	defer input.Destroy()

	outShape := ort.NewShape(1, int64(d.cfg.MaxFaces))
	scores, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		return FaceResult{}, fmt.Errorf("failed to create scores tensor: %w", err)
	}
	defer scores.Destroy()

	smiles, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		return FaceResult{}, fmt.Errorf("failed to create smiles tensor: %w", err)
	}
	defer smiles.Destroy()

	d.mu.Lock()
	err = d.session.Run([]ort.Value{input}, []ort.Value{scores, smiles})
	d.mu.Unlock()
	if err != nil {
		metrics.FaceDetections.WithLabelValues("error").Inc()
		return FaceResult{}, fmt.Errorf("face inference failed: %w", err)
	}

	res := summarizeFaces(scores.GetData(), smiles.GetData(), d.cfg.MinConfidence)
	metrics.FaceDetections.WithLabelValues("success").Inc()

	d.logger.Debug().
		Str("image", imagePath).
		Int("faces", res.Faces).
		Float64("smile_avg", res.SmileAvg).
		Msg("faces detected")

	return res, nil
}

// summarizeFaces counts slots at or above minConf and averages their smile
// probabilities.
func summarizeFaces(conf, smile []float32, minConf float64) FaceResult {
	var res FaceResult
	var sum float64
	for i, c := range conf {
		if float64(c) < minConf || i >= len(smile) {
			continue
		}
		res.Faces++
		sum += float64(smile[i])
	}
	if res.Faces > 0 {
		res.SmileAvg = sum / float64(res.Faces)
	}
	return res
}

// preprocessImage -> float32[1,3,S,S] in planar RGB order.
func (d *ONNXFaceDetector) preprocessImage(imagePath string) (ort.Value, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	size := d.cfg.InputSize
	data := imageToPlanar(resize.Resize(uint(size), uint(size), img, resize.Bilinear))

	return ort.NewTensor(ort.NewShape(1, 3, int64(size), int64(size)), data)
}

func imageToPlanar(img image.Image) []float32 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	plane := w * h
	data := make([]float32, 3*plane)

	idx := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			data[idx] = float32(r>>8) / 255.0
			data[plane+idx] = float32(g>>8) / 255.0
			data[2*plane+idx] = float32(b>>8) / 255.0
			idx++
		}
	}
	return data
}

// Close releases the session and the ONNX environment.
func (d *ONNXFaceDetector) Close() error {
	d.logger.Info().Msg("closing face model session")
	if d.session != nil {
		if err := d.session.Destroy(); err != nil {
			return err
		}
	}
	return ort.DestroyEnvironment()
}
