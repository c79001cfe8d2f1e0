package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/internalerr"
)

const importBatch = 500

// Required CSV columns.
const (
	ColText          = "text"
	ColDominantTopic = "dominant_topic"
	ColTopicLabel    = "topic_label"
)

// ImportCSVFile imports a dataset file. A missing file yields ErrNotFound.
func ImportCSVFile(ctx context.Context, st Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("reviews %s: %w", path, internalerr.ErrNotFound)
		}
		return 0, err
	}
	defer f.Close()
	return ImportCSV(ctx, st, f)
}

// ImportCSV reads reviews from a CSV stream with a header row naming at
// least text, dominant_topic and topic_label. Other columns are ignored.
// Rows with an unparseable topic index are skipped. Returns the number of
// reviews inserted.
func ImportCSV(ctx context.Context, st Store, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return 0, fmt.Errorf("empty dataset: %w", internalerr.ErrInvalidInput)
		}
		return 0, err
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, name := range []string{ColText, ColDominantTopic, ColTopicLabel} {
		if _, ok := cols[name]; !ok {
			return 0, fmt.Errorf("missing column %q: %w", name, internalerr.ErrInvalidInput)
		}
	}

	inserted := 0
	batch := make([]Review, 0, importBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := st.InsertReviews(ctx, batch); err != nil {
			return err
		}
		inserted += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return inserted, err
		}
		rev, ok := parseRecord(rec, cols)
		if !ok {
			continue
		}
		batch = append(batch, rev)
		if len(batch) == importBatch {
			if err := flush(); err != nil {
				return inserted, err
			}
		}
	}
	if err := flush(); err != nil {
		return inserted, err
	}
	return inserted, nil
}

func parseRecord(rec []string, cols map[string]int) (Review, bool) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	topicStr := field(ColDominantTopic)
	// pandas writes integer columns with NaNs as floats ("2.0")
	topicF, err := strconv.ParseFloat(topicStr, 64)
	if err != nil || topicF < 0 || topicF != float64(int(topicF)) {
		return Review{}, false
	}

	return Review{
		Text:          StripMarkup(field(ColText)),
		DominantTopic: int(topicF),
		TopicLabel:    field(ColTopicLabel),
	}, true
}

// StripMarkup returns the text content of s with HTML tags removed and
// entities decoded. Plain text passes through unchanged.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var buf strings.Builder
	var extractText func(*html.Node)
	extractText = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			buf.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extractText(c)
		}
	}
	extractText(doc)

	return strings.TrimSpace(buf.String())
}
