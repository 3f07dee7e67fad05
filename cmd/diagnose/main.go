// Command diagnose проверяет файл весов: прогоняет случайные изображения
// и печатает статистику параметров.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"io"
	"math/rand"
	"os"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"leaf-doctor/config"
	"leaf-doctor/internal/domain/entity"
	"leaf-doctor/internal/infrastructure/model"
	"leaf-doctor/internal/infrastructure/vision"
)

type options struct {
	modelPath   string
	targetLayer string
	samples     int
	seed        int64
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	opts := options{targetLayer: cfg.TargetLayer}
	flag.StringVar(&opts.modelPath, "model", cfg.ModelPath, "weight archive")
	flag.IntVar(&opts.samples, "n", 5, "number of random images")
	flag.Int64Var(&opts.seed, "seed", 1, "random seed")
	flag.Parse()

	if err := run(context.Background(), os.Stdout, opts); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, w io.Writer, opts options) error {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "%s\nMODEL DIAGNOSTIC TEST\n%s\n", rule, rule)

	state, err := model.LoadWeights(opts.modelPath)
	if err != nil {
		return err
	}
	n, err := model.NewNetwork(state, opts.targetLayer)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "✅ Model loaded: %d layers, Grad-CAM at %s\n", len(n.LayerNames()), n.TargetLayer())

	fmt.Fprintf(w, "\n%s\nTEST 1: Random Input Predictions\n%s\n", rule, rule)
	rng := rand.New(rand.NewSource(opts.seed))
	pre := vision.NewPreprocessor()
	for i := 0; i < opts.samples; i++ {
		input, err := pre.Preprocess(randomImage(rng, entity.InputSize))
		if err != nil {
			return err
		}
		logits, err := n.Logits(ctx, input)
		if err != nil {
			return err
		}
		probs, err := entity.Softmax(logits)
		if err != nil {
			return err
		}
		d, err := entity.NewDiagnosis("", probs)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\nRandom Image %d:\n  Predicted: %s\n  Confidence: %.2f%%\n  All probabilities:\n", i+1, d.Label, d.Confidence*100)
		for _, s := range d.Breakdown() {
			fmt.Fprintf(w, "    %s: %.2f%%\n", s.Label, s.Probability*100)
		}
	}

	fmt.Fprintf(w, "\n%s\nTEST 2: Model Weight Statistics\n%s\n", rule, rule)
	fmt.Fprintf(w, "Total parameters: %d\n", model.ParameterCount(state))
	if stem, ok := state["stem.weight"]; ok {
		writeStats(w, "stem.weight", stem)
	}

	fmt.Fprintf(w, "\n%s\nTEST 3: Final Classifier Layer\n%s\n", rule, rule)
	names := make([]string, 0, len(state))
	for name := range state {
		if strings.HasPrefix(name, "head.") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		r, c := state[name].Dims()
		fmt.Fprintf(w, "  %s: %dx%d\n", name, r, c)
	}

	fmt.Fprintf(w, "\n%s\nDIAGNOSTIC COMPLETE\n%s\n", rule, rule)
	return nil
}

func randomImage(rng *rand.Rand, size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		if i%4 == 3 {
			img.Pix[i] = 0xff
			continue
		}
		img.Pix[i] = uint8(rng.Intn(255))
	}
	return img
}

// writeStats среднее, СКО и диапазон параметра; веса одинаковые
// или нулевые выдают непрошедшую обучение модель.
func writeStats(w io.Writer, name string, m *mat.Dense) {
	r, c := m.Dims()
	data := mat.DenseCopyOf(m).RawMatrix().Data
	mean, std := stat.PopMeanStdDev(data, nil)
	fmt.Fprintf(w, "\nFirst layer: %s\n  Shape: %dx%d\n  Mean: %.6f\n  Std: %.6f\n  Min: %.6f\n  Max: %.6f\n",
		name, r, c, mean, std, floats.Min(data), floats.Max(data))
}
