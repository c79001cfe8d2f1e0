package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/internalerr"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/store"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/store/memstore"
)

const dataset = `text,rating,dominant_topic,topic_label
"Delivery was fast, great!",5,1,Shipping speed
"The <b>screen</b> broke after a week&amp;a half",1,0,Product quality
"Support never answered",2,2.0,Customer service
"no topic here",3,,
`

func TestImportCSV(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()

	n, err := store.ImportCSV(ctx, st, strings.NewReader(dataset))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if n != 3 {
		t.Fatalf("Expected 3 reviews (blank topic skipped), got %d", n)
	}

	head, _ := st.Head(ctx, 5)
	if head[0].Text != "Delivery was fast, great!" || head[0].DominantTopic != 1 || head[0].TopicLabel != "Shipping speed" {
		t.Errorf("Unexpected first review: %+v", head[0])
	}
	if head[1].Text != "The screen broke after a week&a half" {
		t.Errorf("Markup not stripped: %q", head[1].Text)
	}
	if head[2].DominantTopic != 2 {
		t.Errorf("Float topic index not parsed: %+v", head[2])
	}
}

func TestImportCSVMissingColumn(t *testing.T) {
	st := memstore.New()
	_, err := store.ImportCSV(context.Background(), st, strings.NewReader("text,topic\nhello,1\n"))
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestImportCSVEmpty(t *testing.T) {
	st := memstore.New()
	_, err := store.ImportCSV(context.Background(), st, strings.NewReader(""))
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestImportCSVFileMissing(t *testing.T) {
	st := memstore.New()
	_, err := store.ImportCSVFile(context.Background(), st, filepath.Join(t.TempDir(), "none.csv"))
	if !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStripMarkup(t *testing.T) {
	cases := map[string]string{
		"plain text":                "plain text",
		"<p>Great <i>value</i></p>": "Great value",
		"line one<br>line two":      "line one line two",
		"fish &amp; chips":          "fish & chips",
		"":                          "",
	}
	for in, want := range cases {
		if got := store.StripMarkup(in); got != want {
			t.Errorf("StripMarkup(%q) = %q, want %q", in, got, want)
		}
	}
}
