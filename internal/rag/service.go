package rag

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/localmind-ai/localmind-backend/internal/data/repos"
	"github.com/localmind-ai/localmind-backend/internal/domain"
	"github.com/localmind-ai/localmind-backend/internal/pkg/dbctx"
	"github.com/localmind-ai/localmind-backend/internal/platform/logger"
)

const contextSeparator = "\n\n---\n\n"

type SearchResult struct {
	ID         uuid.UUID      `json:"id"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Similarity float64        `json:"similarity"`
}

// Service is the document store: append-only ingestion plus brute-force
// cosine search over every stored embedding. The O(N) scan is intentional;
// the corpora this serves are small.
type Service struct {
	docs repos.DocumentRepo
	log  *logger.Logger
}

func NewService(docs repos.DocumentRepo, log *logger.Logger) *Service {
	return &Service{docs: docs, log: log.With("service", "RAGService")}
}

// AddDocument embeds doc.Content and persists the record. Metadata always
// ends up carrying at least the title and the row id so search hits can be
// joined back to their records.
func (s *Service) AddDocument(dbc dbctx.Context, doc *domain.RAGDocument) (*domain.RAGDocument, error) {
	if doc == nil {
		return nil, fmt.Errorf("missing document")
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}

	meta := map[string]any{}
	if len(doc.Metadata) > 0 {
		_ = json.Unmarshal(doc.Metadata, &meta)
	}
	if _, ok := meta["title"]; !ok {
		meta["title"] = doc.Title
	}
	if _, ok := meta["document_id"]; !ok {
		meta["document_id"] = doc.ID.String()
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	doc.Metadata = rawMeta

	rawVec, err := json.Marshal(Embed(doc.Content))
	if err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}
	doc.Embedding = rawVec

	return s.docs.Create(dbc, doc)
}

// Search embeds the query and scans the whole active corpus, returning up
// to topK hits ordered by descending similarity. Ties keep insertion order
// (the sort is stable over the store's natural enumeration).
func (s *Service) Search(dbc dbctx.Context, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 3
	}
	queryVec := Embed(query)

	docs, err := s.docs.ListActive(dbc)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(docs))
	for _, doc := range docs {
		var vec []float64
		if err := json.Unmarshal(doc.Embedding, &vec); err != nil {
			s.log.Warn("skipping document with unreadable embedding", "document_id", doc.ID, "error", err)
			continue
		}
		meta := map[string]any{}
		if len(doc.Metadata) > 0 {
			_ = json.Unmarshal(doc.Metadata, &meta)
		}
		results = append(results, SearchResult{
			ID:         doc.ID,
			Content:    doc.Content,
			Metadata:   meta,
			Similarity: Cosine(queryVec, vec),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Context renders the top search hits into the block injected into the
// prompt, or "" when the store has nothing to offer.
func (s *Service) Context(dbc dbctx.Context, query string, topK int) (string, error) {
	hits, err := s.Search(dbc, query, topK)
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(hits))
	for _, hit := range hits {
		parts = append(parts, fmt.Sprintf("[Relevance: %.2f]\n%s", hit.Similarity, hit.Content))
	}
	return strings.Join(parts, contextSeparator), nil
}
