// Command bandrnn runs a band-wise bidirectional RNN over
// multi-band images and prints the predicted class of
// each image.
//
// The model is built from the config with freshly
// initialized weights; nothing is loaded from disk. The
// predictions and accuracies it reports therefore only
// exercise the model, they do not reflect a trained
// classifier.
package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/bandrnn"
	"github.com/unixpickle/bandrnn/classify"
	"github.com/unixpickle/bandrnn/config"
	"github.com/unixpickle/essentials"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// SampleFile is the format of the -samples file.
type SampleFile struct {
	Samples []Sample `yaml:"samples"`
}

// A Sample is one multi-band image.
//
// Pixels are stored band by band, each band as a
// row-major image.
// File is the path the image was captured to, which
// encodes its acquisition condition.
type Sample struct {
	File   string    `yaml:"file,omitempty"`
	Label  *int      `yaml:"label,omitempty"`
	Pixels []float64 `yaml:"pixels"`
}

func main() {
	var configPath string
	var samplesPath string
	var initConfig bool
	var seed int64
	var cond classify.Condition
	flag.StringVar(&configPath, "config", "config.yaml", "model config file")
	flag.StringVar(&samplesPath, "samples", "",
		"YAML file of images to classify (with untrained, randomly initialized weights)")
	flag.BoolVar(&initConfig, "init", false, "write the default config and exit")
	flag.Int64Var(&seed, "seed", 0, "weight initialization seed (0 uses the time)")
	flag.StringVar(&cond.Illum, "illum", classify.Any,
		"only score samples with this illumination (normal, illum1, illum2)")
	flag.StringVar(&cond.Position, "position", classify.Any,
		"only score samples with this position (1-7)")
	flag.StringVar(&cond.Glasses, "glasses", classify.Any,
		"only score samples with this glasses setting (1 or 5)")
	flag.Parse()

	logger := logrus.New()

	if initConfig {
		if err := config.Default().Save(configPath); err != nil {
			logger.Fatal(err)
		}
		logger.WithField("path", configPath).Info("Wrote default config")
		return
	}
	if samplesPath == "" {
		logger.Fatal("missing -samples flag")
	}
	if err := cond.Validate(); err != nil {
		logger.Fatal(err)
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		logger.Fatal(err)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	model, err := seededModel(cfg, seed)
	if err != nil {
		logger.Fatal(err)
	}
	log := runLogger(logger, cfg, seed)
	log.Info("Built model")

	samples, err := readSamples(samplesPath)
	if err != nil {
		log.Fatal(err)
	}
	log.WithField("samples", len(samples.Samples)).Info("Read samples")

	images, err := packSamples(cfg, samples)
	if err != nil {
		log.Fatal(err)
	}
	out, err := model.Apply(images)
	if err != nil {
		log.Fatal(err)
	}

	scores := classify.MeanScores(out).Output()
	preds := classify.Predict(scores, cfg.Classes)
	probs := classify.Softmax(scores, cfg.Classes)

	var w io.Writer = os.Stdout
	var tw *tabwriter.Writer
	if term.IsTerminal(int(os.Stdout.Fd())) {
		tw = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		w = tw
	}
	printPredictions(w, samples, preds, probs)
	if tw != nil {
		tw.Flush()
	}

	labels, ok := sampleLabels(samples)
	if !ok {
		return
	}
	acc, err := classify.Accuracy(preds, labels)
	if err != nil {
		log.Fatal(err)
	}
	log.WithField("accuracy", acc).Info("Scored samples")

	if !cond.IsAny() {
		count, acc, err := conditionAccuracy(samples, cond, preds, labels)
		if err != nil {
			log.Fatal(err)
		}
		log.WithFields(logrus.Fields{
			"condition": cond.String(),
			"matched":   count,
			"accuracy":  acc,
		}).Info("Scored condition")
	}
}

// seededModel builds a model whose weights only depend on
// the seed.
//
// anynet draws initial weights from the global source.
// Seeding it takes effect as long as go.mod's go directive
// is below 1.24 (randseednop=0).
func seededModel(cfg *config.Config, seed int64) (*bandrnn.Model, error) {
	rand.Seed(seed)
	return cfg.NewModel()
}

// runLogger attaches the fields which identify a run.
func runLogger(logger *logrus.Logger, cfg *config.Config, seed int64) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"run_id":    uuid.New().String(),
		"bands":     cfg.Bands,
		"height":    cfg.Height,
		"width":     cfg.Width,
		"classes":   cfg.Classes,
		"extractor": cfg.Extractor.Name,
		"seed":      seed,
	})
}

// conditionAccuracy scores the samples whose files match
// the condition.
func conditionAccuracy(s *SampleFile, cond classify.Condition, preds,
	labels []int) (int, float64, error) {
	files := make([]string, len(s.Samples))
	for i, sample := range s.Samples {
		files[i] = sample.File
	}
	mask, err := classify.Filter(files, cond)
	if err != nil {
		return 0, 0, err
	}
	var count int
	for _, m := range mask {
		if m {
			count++
		}
	}
	acc, err := classify.MaskedAccuracy(preds, labels, mask)
	if err != nil {
		return count, 0, errors.Wrap(err, cond.String())
	}
	return count, acc, nil
}

func readSamples(path string) (*SampleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, essentials.AddCtx("read samples", err)
	}
	var res SampleFile
	if err := yaml.Unmarshal(data, &res); err != nil {
		return nil, essentials.AddCtx("read samples", err)
	}
	if len(res.Samples) == 0 {
		return nil, errors.Errorf("read samples: no samples in %s", path)
	}
	return &res, nil
}

func packSamples(cfg *config.Config, s *SampleFile) (*bandrnn.Images, error) {
	imageSize := cfg.Bands * cfg.Height * cfg.Width
	var data []float64
	for i, sample := range s.Samples {
		if len(sample.Pixels) != imageSize {
			return nil, errors.Errorf("sample %d: expected %d pixels but got %d", i,
				imageSize, len(sample.Pixels))
		}
		data = append(data, sample.Pixels...)
	}
	c := cfg.Creator()
	return &bandrnn.Images{
		Data: anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(data))),
		N:    len(s.Samples),
		C:    cfg.Bands,
		H:    cfg.Height,
		W:    cfg.Width,
	}, nil
}

func printPredictions(w io.Writer, s *SampleFile, preds []int, probs [][]float64) {
	fmt.Fprintln(w, "sample\tpredicted\tprobability\tlabel")
	for i, pred := range preds {
		label := "-"
		if s.Samples[i].Label != nil {
			label = fmt.Sprint(*s.Samples[i].Label)
		}
		fmt.Fprintf(w, "%d\t%d\t%.4f\t%s\n", i, pred, probs[i][pred], label)
	}
}

func sampleLabels(s *SampleFile) ([]int, bool) {
	var res []int
	for _, sample := range s.Samples {
		if sample.Label == nil {
			return nil, false
		}
		res = append(res, *sample.Label)
	}
	return res, true
}
