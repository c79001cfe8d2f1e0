package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/artifact"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/config"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/inference"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/internalerr"
)

func main() {
	var (
		modelPath    = flag.String("model", "lda_model.json", "Model artifact (JSON or YAML)")
		stoplistPath = flag.String("stoplist", "", "Extra stopwords file (optional)")
		text         = flag.String("text", "", "One-shot text (non-interactive mode)")
		batchPath    = flag.String("batch", "", "Classify every line of a file (non-interactive mode)")
		workers      = flag.Int("workers", inference.DefaultBatchWorkers, "Concurrent workers for --batch")
	)
	flag.Parse()

	engine, err := buildEngine(*modelPath, *stoplistPath)
	if err != nil {
		log.Fatal(err)
	}

	// One-shot mode
	if *text != "" {
		printResult(os.Stdout, engine.Classify(*text))
		return
	}

	// Batch mode
	if *batchPath != "" {
		f, err := os.Open(*batchPath)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		if err := classifyBatch(context.Background(), os.Stdout, engine, f, *workers); err != nil {
			log.Fatal(err)
		}
		return
	}

	// Interactive mode
	fmt.Println("===========================================")
	fmt.Println("  Review topic classifier")
	fmt.Printf("  %d topics loaded from %s\n", engine.NumTopics(), *modelPath)
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("Type a review (Ctrl+D to exit):")
	fmt.Println()

	interactive(os.Stdin, os.Stdout, engine)

	fmt.Println("\nGoodbye!")
}

func buildEngine(modelPath, stoplistPath string) (*inference.Engine, error) {
	loader := config.Loader{StoplistPath: stoplistPath}
	components, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	art, err := artifact.Load(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	return inference.New(inference.Options{
		Tokenizer:  components.Preprocessor,
		Model:      art.Model,
		Vocabulary: art.Dictionary,
		Labels:     art.Labels,
	})
}

func printResult(w io.Writer, res inference.Result) {
	if !res.OK() {
		fmt.Fprintln(w, "Error:", internalerr.Message(res.Err))
		return
	}
	fmt.Fprintf(w, "Topic %d: %s (confidence %.3f)\n", *res.Topic, res.Label, res.Confidence)
}

func interactive(r io.Reader, w io.Writer, engine *inference.Engine) {
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			break
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			fmt.Fprintln(w, "Please enter a text to analyse.")
			continue
		}
		printResult(w, engine.Classify(text))
	}
}

func classifyBatch(ctx context.Context, w io.Writer, engine *inference.Engine, r io.Reader, workers int) error {
	var texts []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			texts = append(texts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read batch: %w", err)
	}

	results, err := engine.ClassifyBatch(ctx, texts, workers)
	if err != nil {
		return err
	}
	for i, res := range results {
		fmt.Fprintf(w, "%d\t", i+1)
		printResult(w, res)
	}
	return nil
}
