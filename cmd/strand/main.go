// Package main provides the Strand CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/strand-ml/strand/backend/cpu"
	"github.com/strand-ml/strand/internal/serialization"
	"github.com/strand-ml/strand/model"
	"github.com/strand-ml/strand/tensor"
)

const version = "v0.3.1"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("Strand %s\n", version)
	case "inspect":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: strand inspect <checkpoint>")
			os.Exit(2)
		}
		if err := inspect(os.Args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
			os.Exit(1)
		}
	case "bench":
		if err := bench(); err != nil {
			fmt.Fprintf(os.Stderr, "bench: %v\n", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("Strand - sequence-to-logits transformer engine")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version               Show version")
	fmt.Println("  inspect <checkpoint>  Print checkpoint header and tensor table")
	fmt.Println("  bench                 Time a forward pass on a random model")
}

// inspect prints the header, hyperparameters, and tensor table of a
// .strand checkpoint. The checksum pass is skipped so inspection of
// large checkpoints stays fast.
func inspect(path string) error {
	reader, err := serialization.NewReaderWithOptions(path, serialization.ReaderOptions{
		SkipChecksumValidation: true,
	})
	if err != nil {
		return err
	}
	defer reader.Close()

	header := reader.Header()
	fmt.Printf("File:            %s\n", path)
	fmt.Printf("Format version:  %d\n", header.FormatVersion)
	fmt.Printf("Strand version:  %s\n", header.StrandVersion)
	fmt.Printf("Created:         %s\n", header.CreatedAt.Format(time.RFC3339))

	if m := header.Model; m != nil {
		fmt.Println("\nModel:")
		fmt.Printf("  vocab_size:      %d\n", m.VocabSize)
		fmt.Printf("  d_model:         %d\n", m.DModel)
		fmt.Printf("  n_heads:         %d\n", m.NumHeads)
		fmt.Printf("  n_layers:        %d\n", m.NumLayers)
		fmt.Printf("  d_ff:            %d\n", m.FFDim)
		fmt.Printf("  max_seq_length:  %d\n", m.MaxSeqLen)
		fmt.Printf("  dropout:         %g\n", m.Dropout)
	}

	fmt.Printf("\nTensors (%d):\n", len(header.Tensors))
	var totalBytes int64
	for _, t := range header.Tensors {
		fmt.Printf("  %-48s %-8s %v\n", t.Name, t.DType, t.Shape)
		totalBytes += t.Size
	}
	fmt.Printf("\nTotal tensor data: %.2f MB\n", float64(totalBytes)/(1024*1024))

	return nil
}

// bench times forward passes of a small randomly initialized model.
func bench() error {
	backend := cpu.New()

	m, err := model.New[*cpu.Backend](model.Config{
		VocabSize: 10000,
		DModel:    256,
		NumHeads:  8,
		NumLayers: 4,
		FFDim:     1024,
		MaxSeqLen: 512,
	}, backend)
	if err != nil {
		return err
	}

	const (
		batch  = 4
		seqLen = 128
		runs   = 5
	)

	ids := tensor.Zeros[int32](tensor.Shape{batch, seqLen}, backend)
	data := ids.Data()
	for i := range data {
		data[i] = int32(i % 10000)
	}

	fmt.Printf("Model: %d parameters\n", m.NumParameters())
	fmt.Printf("Input: [%d, %d]\n\n", batch, seqLen)

	mask := m.CausalMask(seqLen)

	// Warmup run excluded from timing.
	if _, err := m.Forward(ids, mask); err != nil {
		return err
	}

	var total time.Duration
	for i := 0; i < runs; i++ {
		start := time.Now()
		if _, err := m.Forward(ids, mask); err != nil {
			return err
		}
		elapsed := time.Since(start)
		total += elapsed
		fmt.Printf("  run %d: %v\n", i+1, elapsed)
	}
	fmt.Printf("\nMean: %v\n", total/runs)

	return nil
}
