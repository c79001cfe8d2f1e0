package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/store"
)

// TestSQLiteIntegrationBasic tests insert and read-back
func TestSQLiteIntegrationBasic(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer st.Close()

	reviews := []store.Review{
		{Text: "fast delivery", DominantTopic: 1, TopicLabel: "Shipping"},
		{Text: "broken screen", DominantTopic: 0, TopicLabel: "Quality"},
		{Text: "late parcel", DominantTopic: 1},
	}
	if err := st.InsertReviews(ctx, reviews); err != nil {
		t.Fatalf("InsertReviews: %v", err)
	}

	head, err := st.Head(ctx, 2)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if len(head) != 2 {
		t.Fatalf("Expected 2 reviews, got %d", len(head))
	}
	if head[0].Text != "fast delivery" || head[0].TopicLabel != "Shipping" || head[0].ID == 0 {
		t.Errorf("unexpected first review %+v", head[0])
	}

	byTopic, err := st.ReviewsByTopic(ctx, 1, 10)
	if err != nil {
		t.Fatalf("ReviewsByTopic: %v", err)
	}
	if len(byTopic) != 2 || byTopic[1].TopicLabel != "" {
		t.Errorf("unexpected topic reviews %+v", byTopic)
	}

	counts, err := st.CountByTopic(ctx)
	if err != nil {
		t.Fatalf("CountByTopic: %v", err)
	}
	if counts[0] != 1 || counts[1] != 2 {
		t.Errorf("unexpected counts %v", counts)
	}

	n, err := st.Count(ctx)
	if err != nil || n != 3 {
		t.Errorf("Count = %d, %v", n, err)
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	st, err := OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	st.InsertReviews(ctx, []store.Review{{Text: "kept", DominantTopic: 2}})
	st.Close()

	st, err = OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	head, _ := st.Head(ctx, 1)
	if len(head) != 1 || head[0].Text != "kept" {
		t.Errorf("data lost across reopen: %+v", head)
	}
}

func TestSQLiteInMemoryImport(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	var sb strings.Builder
	sb.WriteString("text,dominant_topic,topic_label\n")
	for i := 0; i < 1200; i++ {
		fmt.Fprintf(&sb, "review number %d,%d,Topic %d\n", i, i%3, i%3)
	}

	n, err := store.ImportCSV(ctx, st, strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if n != 1200 {
		t.Errorf("Expected 1200 imported, got %d", n)
	}
	counts, _ := st.CountByTopic(ctx)
	if counts[0] != 400 || counts[1] != 400 || counts[2] != 400 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestSQLiteHeadZero(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	head, err := st.Head(ctx, 0)
	if err != nil || len(head) != 0 {
		t.Errorf("Head(0) = %v, %v", head, err)
	}
}

// TestSQLiteClear tests that Clear empties the table and inserts still work
func TestSQLiteClear(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer st.Close()

	if err := st.InsertReviews(ctx, []store.Review{{Text: "fast delivery", DominantTopic: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := st.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, _ := st.Count(ctx); n != 0 {
		t.Errorf("Expected 0 reviews after Clear, got %d", n)
	}

	if err := st.InsertReviews(ctx, []store.Review{{Text: "broken screen", DominantTopic: 0}}); err != nil {
		t.Fatal(err)
	}
	if n, _ := st.Count(ctx); n != 1 {
		t.Errorf("Expected 1 review, got %d", n)
	}
}
