// Package main provides the nntrainer CLI.
//
// Usage:
//
//	nntrainer [-v=N] train -config model.yaml [-samples 1024] [-seed 1] [-validation 0.2] [-checkpoint ckpt] [-upload gs://bucket]
//	nntrainer version
//
// train builds the network described by the model file and fits it to a
// synthetic classification set: one Gaussian cluster per output unit.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/stat/distuv"
	"k8s.io/klog/v2"

	"github.com/born-ml/nntrainer/internal/blobs"
	"github.com/born-ml/nntrainer/internal/config"
	"github.com/born-ml/nntrainer/internal/network"
	"github.com/born-ml/nntrainer/internal/tensor"
)

const version = "v0.1.0"

func main() {
	klog.InitFlags(nil)
	flag.Usage = usage
	flag.Parse()
	defer klog.Flush()

	switch flag.Arg(0) {
	case "train":
		if err := train(flag.Args()[1:]); err != nil {
			klog.Errorf("train: %+v", err)
			klog.Flush()
			os.Exit(1)
		}
	case "version":
		fmt.Printf("nntrainer %s\n", version)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "nntrainer %s\n\n", version)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  train      Train a model described by a YAML file")
	fmt.Fprintln(os.Stderr, "  version    Show version")
	fmt.Fprintln(os.Stderr, "\nGlobal flags:")
	flag.PrintDefaults()
}

func train(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	configPath := fs.String("config", "", "Model description (YAML).")
	samples := fs.Int("samples", 1024, "Number of synthetic samples.")
	seed := fs.Uint64("seed", 1, "Seed for data generation and shuffling.")
	validation := fs.Float64("validation", 0.2, "Fraction of samples held out for evaluation.")
	halfPath := fs.String("export_half", "", "Also write a float16 export of the weights to this path.")
	checkpoint := fs.String("checkpoint", "", "Resume from this checkpoint if it exists, and write it after training.")
	upload := fs.String("upload", "", "Blobstore (gs://bucket or a directory) to upload the written artifacts to.")
	must.M(fs.Parse(args))
	if *configPath == "" {
		fs.Usage()
		return errors.New("-config is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	net, err := cfg.Build()
	if err != nil {
		return err
	}

	if *checkpoint != "" {
		if _, err := os.Stat(*checkpoint); err == nil {
			if err := net.LoadCheckpoint(*checkpoint); err != nil {
				return err
			}
			klog.Infof("resuming from %s at iteration %d", *checkpoint, net.Iteration())
		}
	}

	ls := net.Layers()
	shape := ls[0].InputShape()
	classes := ls[len(ls)-1].OutputDim().Width
	inputs, labels := clusters(*samples, shape.FeatureLen(), classes, *seed)
	trainIn, trainLabels, valIn, valLabels := network.Split(inputs, labels, float32(*validation))

	batch := cfg.Model.BatchSize
	trainSrc, err := network.NewMemorySource(trainIn, trainLabels, shape, batch, true, *seed)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bar := progressbar.NewOptions(cfg.Model.Epochs*trainSrc.Batches(),
		progressbar.OptionSetDescription("Training"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("steps"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionClearOnFinish(),
	)
	history, err := net.Train(ctx, trainSrc, cfg.Model.Epochs, func(s network.Step) {
		bar.Describe(fmt.Sprintf("Epoch %d loss=%.4f", s.Epoch+1, s.Loss))
		_ = bar.Add(1)
	})
	_ = bar.Finish()
	if err != nil {
		return err
	}
	last := history[len(history)-1]
	fmt.Printf("trained %d epochs: final loss %.6f\n", len(history), last.MeanLoss)

	if len(valIn) >= batch {
		valSrc := must.M1(network.NewMemorySource(valIn, valLabels, shape, batch, false, 0))
		m, err := net.Evaluate(ctx, valSrc)
		if err != nil {
			return err
		}
		fmt.Printf("validation: %d samples, loss %.6f, accuracy %.2f%%\n", m.Samples, m.MeanLoss, 100*m.Accuracy)
	} else {
		klog.Warningf("validation set of %d samples is smaller than a batch, skipping evaluation", len(valIn))
	}

	if cfg.Model.SavePath != "" {
		if err := net.SaveFile(cfg.Model.SavePath); err != nil {
			return err
		}
	}
	if *checkpoint != "" {
		if err := net.SaveCheckpoint(*checkpoint); err != nil {
			return err
		}
	}
	if *halfPath != "" {
		if err := net.ExportHalfFile(*halfPath); err != nil {
			return err
		}
	}
	if *upload != "" {
		return uploadArtifacts(ctx, *upload, cfg.Model.SavePath, *checkpoint, *halfPath)
	}
	return nil
}

// uploadArtifacts stores every non-empty path in the blobstore at location
// and prints the content key of each.
func uploadArtifacts(ctx context.Context, location string, paths ...string) error {
	store, err := blobs.Open(location)
	if err != nil {
		return err
	}
	ctx = klog.NewContext(ctx, klog.Background().WithName("blobs"))
	for _, path := range paths {
		if path == "" {
			continue
		}
		info, err := blobs.HashFile(path)
		if err != nil {
			return err
		}
		if err := store.Upload(ctx, path, info); err != nil {
			return errors.WithMessagef(err, "upload %s", path)
		}
		fmt.Printf("uploaded %s as %s\n", path, info.Hash)
	}
	return nil
}

// clusters draws n samples of the given feature length around one random
// center per class, with one-hot labels.
func clusters(n, features, classes int, seed uint64) (inputs, labels [][]float32) {
	src := rand.NewPCG(seed, seed+1)
	centerDist := distuv.Normal{Mu: 0, Sigma: 2, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: 0.5, Src: src}

	centers := make([]*tensor.Tensor, classes)
	for c := range centers {
		centers[c] = must.M1(tensor.New(tensor.NewDim(1, 1, 1, features)))
		for i := range centers[c].Data() {
			centers[c].Data()[i] = float32(centerDist.Rand())
		}
	}

	rng := rand.New(src)
	for i := 0; i < n; i++ {
		class := rng.IntN(classes)
		sample := make([]float32, features)
		for j, v := range centers[class].Data() {
			sample[j] = v + float32(noise.Rand())
		}
		label := make([]float32, classes)
		label[class] = 1
		inputs = append(inputs, sample)
		labels = append(labels, label)
	}
	return inputs, labels
}
