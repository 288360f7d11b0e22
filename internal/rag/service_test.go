package rag_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/localmind-ai/localmind-backend/internal/data/repos"
	"github.com/localmind-ai/localmind-backend/internal/data/repos/testutil"
	"github.com/localmind-ai/localmind-backend/internal/domain"
	"github.com/localmind-ai/localmind-backend/internal/pkg/dbctx"
	"github.com/localmind-ai/localmind-backend/internal/rag"
)

func newTestService(t *testing.T) (*rag.Service, dbctx.Context) {
	t.Helper()
	log := testutil.Logger(t)
	tx := testutil.Tx(t, testutil.DB(t))
	docs := repos.NewDocumentRepo(tx, log)
	return rag.NewService(docs, log), dbctx.Context{Ctx: context.Background(), Tx: tx}
}

func seedCorpus(t *testing.T, svc *rag.Service, dbc dbctx.Context) {
	t.Helper()
	for _, doc := range []struct{ title, content string }{
		{"python", "Python is a high level programming language used for scripting and data science"},
		{"bananas", "Bananas are yellow tropical fruit rich in potassium"},
		{"go", "Go is a compiled programming language designed at Google"},
	} {
		if _, err := svc.AddDocument(dbc, &domain.RAGDocument{Title: doc.title, Content: doc.content}); err != nil {
			t.Fatalf("seed document %q: %v", doc.title, err)
		}
	}
}

func TestAddDocumentEmbedsContent(t *testing.T) {
	svc, dbc := newTestService(t)
	saved, err := svc.AddDocument(dbc, &domain.RAGDocument{Title: "notes", Content: "some text"})
	if err != nil {
		t.Fatalf("AddDocument: %v", err)
	}
	var vec []float64
	if err := json.Unmarshal(saved.Embedding, &vec); err != nil {
		t.Fatalf("embedding not valid JSON: %v", err)
	}
	if len(vec) != rag.EmbeddingDims {
		t.Fatalf("unexpected embedding dims: got=%d want=%d", len(vec), rag.EmbeddingDims)
	}
	var meta map[string]any
	if err := json.Unmarshal(saved.Metadata, &meta); err != nil {
		t.Fatalf("metadata not valid JSON: %v", err)
	}
	if meta["title"] != "notes" {
		t.Fatalf("metadata title missing: %v", meta)
	}
	if meta["document_id"] != saved.ID.String() {
		t.Fatalf("metadata document_id missing: %v", meta)
	}
}

func TestSearchRanksRelevantFirst(t *testing.T) {
	svc, dbc := newTestService(t)
	seedCorpus(t, svc, dbc)

	results, err := svc.Search(dbc, "python programming language", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Metadata["title"] != "python" {
		t.Fatalf("expected the python document first, got %v", results[0].Metadata["title"])
	}
	if results[0].Similarity < results[1].Similarity {
		t.Fatalf("results not ordered by similarity: %v then %v", results[0].Similarity, results[1].Similarity)
	}
	for _, r := range results {
		if r.Metadata["title"] == "bananas" {
			t.Fatalf("unrelated document must not make the cut")
		}
	}
}

func TestSearchEmptyStore(t *testing.T) {
	svc, dbc := newTestService(t)
	results, err := svc.Search(dbc, "anything at all", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
	out, err := svc.Context(dbc, "anything at all", 3)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty context, got %q", out)
	}
}

func TestSearchDefaultsTopK(t *testing.T) {
	svc, dbc := newTestService(t)
	seedCorpus(t, svc, dbc)
	results, err := svc.Search(dbc, "programming", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) > 3 {
		t.Fatalf("default topK should cap at 3, got %d", len(results))
	}
}

func TestContextFormat(t *testing.T) {
	svc, dbc := newTestService(t)
	seedCorpus(t, svc, dbc)

	out, err := svc.Context(dbc, "python programming language", 2)
	if err != nil {
		t.Fatalf("Context: %v", err)
	}
	if !strings.HasPrefix(out, "[Relevance: ") {
		t.Fatalf("context must open with a relevance tag: %q", out)
	}
	if !strings.Contains(out, "\n\n---\n\n") {
		t.Fatalf("multiple hits must be separated: %q", out)
	}
	if !strings.Contains(out, "Python is a high level programming language") {
		t.Fatalf("top hit content missing: %q", out)
	}
}
