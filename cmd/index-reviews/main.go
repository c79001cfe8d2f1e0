package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/artifact"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/config"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/inference"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/store"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/store/sqlite"
)

// maxCheckedPerTopic bounds how many stored reviews are re-classified per topic.
const maxCheckedPerTopic = 1000

type report struct {
	Imported  int           `json:"imported"`
	Skipped   bool          `json:"skipped,omitempty"`
	Total     int           `json:"total"`
	Topics    []topicReport `json:"topics"`
	Checked   int           `json:"checked,omitempty"`
	Agreed    int           `json:"agreed,omitempty"`
	Agreement float64       `json:"agreement,omitempty"`
}

type topicReport struct {
	Topic     int     `json:"topic"`
	Reviews   int     `json:"reviews"`
	Checked   int     `json:"checked,omitempty"`
	Agreed    int     `json:"agreed,omitempty"`
	Agreement float64 `json:"agreement,omitempty"`
}

func main() {
	var (
		dbPath       = flag.String("db", "", "Database path (required)")
		dataPath     = flag.String("data", "", "Input CSV file (required)")
		modelPath    = flag.String("model", "", "Model artifact; when set, stored labels are checked against it")
		stoplistPath = flag.String("stoplist", "", "Extra stopwords file (optional)")
		replace      = flag.Bool("replace", false, "Replace reviews already in the database")
	)
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("--db required")
	}
	if *dataPath == "" {
		log.Fatal("--data required")
	}

	ctx := context.Background()

	var engine *inference.Engine
	if *modelPath != "" {
		var err error
		engine, err = buildEngine(*modelPath, *stoplistPath)
		if err != nil {
			log.Fatal("Failed to load model:", err)
		}
	}

	st, err := sqlite.OpenSQLite(ctx, *dbPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer st.Close()

	rep, err := index(ctx, st, *dataPath, engine, *replace)
	if err != nil {
		log.Fatal(err)
	}
	if rep.Skipped {
		log.Printf("Database already holds %d reviews, import skipped (use --replace to reload)", rep.Total)
	}
	log.Printf("Indexing complete: %d reviews imported, %d stored", rep.Imported, rep.Total)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		log.Fatal(err)
	}
}

func buildEngine(modelPath, stoplistPath string) (*inference.Engine, error) {
	loader := config.Loader{StoplistPath: stoplistPath}
	components, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	art, err := artifact.Load(modelPath)
	if err != nil {
		return nil, err
	}
	return inference.New(inference.Options{
		Tokenizer:  components.Preprocessor,
		Model:      art.Model,
		Vocabulary: art.Dictionary,
		Labels:     art.Labels,
	})
}

// index imports dataPath into st and summarizes the stored reviews per
// topic. A non-empty store is left untouched unless replace is set, in
// which case it is cleared first. With an engine, each topic's reviews are
// re-classified and the share whose prediction matches the stored topic is
// reported.
func index(ctx context.Context, st store.Store, dataPath string, engine *inference.Engine, replace bool) (*report, error) {
	existing, err := st.Count(ctx)
	if err != nil {
		return nil, err
	}

	skip := existing > 0 && !replace
	imported := 0
	if !skip {
		if existing > 0 {
			if err := st.Clear(ctx); err != nil {
				return nil, fmt.Errorf("clear store: %w", err)
			}
		}
		imported, err = store.ImportCSVFile(ctx, st, dataPath)
		if err != nil {
			return nil, fmt.Errorf("import %s: %w", dataPath, err)
		}
	}

	counts, err := st.CountByTopic(ctx)
	if err != nil {
		return nil, err
	}
	rep := &report{Imported: imported, Skipped: skip, Topics: []topicReport{}}
	for topic, n := range counts {
		rep.Topics = append(rep.Topics, topicReport{Topic: topic, Reviews: n})
		rep.Total += n
	}
	sort.Slice(rep.Topics, func(i, j int) bool { return rep.Topics[i].Topic < rep.Topics[j].Topic })

	if engine == nil {
		return rep, nil
	}

	for i := range rep.Topics {
		tr := &rep.Topics[i]
		reviews, err := st.ReviewsByTopic(ctx, tr.Topic, maxCheckedPerTopic)
		if err != nil {
			return nil, err
		}
		texts := make([]string, len(reviews))
		for j, r := range reviews {
			texts[j] = r.Text
		}
		results, err := engine.ClassifyBatch(ctx, texts, inference.DefaultBatchWorkers)
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			tr.Checked++
			if res.OK() && *res.Topic == tr.Topic {
				tr.Agreed++
			}
		}
		if tr.Checked > 0 {
			tr.Agreement = float64(tr.Agreed) / float64(tr.Checked)
		}
		rep.Checked += tr.Checked
		rep.Agreed += tr.Agreed
	}
	if rep.Checked > 0 {
		rep.Agreement = float64(rep.Agreed) / float64(rep.Checked)
	}
	return rep, nil
}
