package chroma

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"mailpilot-backend/pkg/config"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
)

const maxDocumentLength = 10000

// EmailDocument is the searchable projection of one email. The embedded text
// concatenates the addressing fields with the body so "mail from X about Y"
// style prompts retrieve well.
type EmailDocument struct {
	EmailID  string
	ThreadID string
	Subject  string
	From     string
	To       []string
	Body     string
	RawBody  string
	SentAt   time.Time
}

// SearchHit is one retrieval result.
type SearchHit struct {
	ID       string  `json:"id"`
	Document string  `json:"document"`
	Score    float64 `json:"score"`
}

// ChromaClient wraps one hybrid-searchable collection. Account isolation is
// enforced with a metadata filter on every query; documents of different
// accounts share the collection but can never appear in each other's results.
type ChromaClient struct {
	client     chroma.Client
	embedFunc  *gemini.GeminiEmbeddingFunction
	collection chroma.Collection
}

func NewChromaClient(cfg *config.Config) (*ChromaClient, error) {
	if cfg.ChromaAPIKey == "" {
		return nil, fmt.Errorf("CHROMA_API_KEY is required")
	}

	if cfg.GeminiApiKey != "" {
		os.Setenv("GEMINI_API_KEY", cfg.GeminiApiKey)
	}

	// The embedding call happens client-side on insert and query.
	embedFunc, err := gemini.NewGeminiEmbeddingFunction(
		gemini.WithEnvAPIKey(),
		gemini.WithDefaultModel("text-embedding-004"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
	}

	var client chroma.Client
	if cfg.ChromaDatabase != "" && cfg.ChromaTenant != "" {
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
			chroma.WithDatabaseAndTenant(cfg.ChromaDatabase, cfg.ChromaTenant),
		)
	} else if cfg.ChromaTenant != "" {
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
			chroma.WithTenant(cfg.ChromaTenant),
		)
	} else {
		client, err = chroma.NewHTTPClient(
			chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
			chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}

	ctx := context.Background()
	collection, err := client.GetOrCreateCollection(
		ctx,
		"emails",
		chroma.WithEmbeddingFunctionCreate(embedFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	log.Printf("[Chroma] Initialized client with collection: emails")

	return &ChromaClient{
		client:     client,
		embedFunc:  embedFunc,
		collection: collection,
	}, nil
}

// BuildDocumentText renders the embedded text for an email document. The full
// raw body is preferred over the snippet so retrieval sees the whole message.
func BuildDocumentText(doc EmailDocument) string {
	body := doc.RawBody
	if body == "" {
		body = doc.Body
	}
	text := fmt.Sprintf("From: %s\nTo: %s\nSubject: %s\nBody: %s\nSentAt: %s",
		doc.From,
		strings.Join(doc.To, ", "),
		doc.Subject,
		body,
		doc.SentAt.UTC().Format(time.RFC3339),
	)
	if len(text) > maxDocumentLength {
		// Embedding models have token limits.
		text = text[:maxDocumentLength]
	}
	return text
}

// UpsertEmailDocument embeds and writes one document, keyed by the email id
// so replayed sync windows overwrite rather than duplicate.
func (c *ChromaClient) UpsertEmailDocument(ctx context.Context, accountID string, doc EmailDocument) error {
	text := BuildDocumentText(doc)

	metadata, err := chroma.NewDocumentMetadataFromMap(map[string]interface{}{
		"account_id": accountID,
		"email_id":   doc.EmailID,
		"thread_id":  doc.ThreadID,
		"subject":    doc.Subject,
		"from":       doc.From,
		"sent_at":    doc.SentAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to create metadata: %w", err)
	}

	err = c.collection.Upsert(
		ctx,
		chroma.WithIDs(chroma.DocumentID(doc.EmailID)),
		chroma.WithMetadatas(metadata),
		chroma.WithTexts(text),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert email document: %w", err)
	}
	return nil
}

// VectorSearch performs pure nearest-neighbor retrieval scoped to one account.
func (c *ChromaClient) VectorSearch(ctx context.Context, accountID, prompt string, limit int) ([]SearchHit, error) {
	return c.query(ctx, accountID, prompt, limit)
}

// HybridSearch combines vector retrieval with keyword filtering: candidates
// come back by semantic distance, hits containing the literal term rank ahead
// of ones that only match semantically.
func (c *ChromaClient) HybridSearch(ctx context.Context, accountID, term string, limit int) ([]SearchHit, error) {
	candidates, err := c.query(ctx, accountID, term, limit*4)
	if err != nil {
		return nil, err
	}
	return RankHybrid(candidates, term, limit), nil
}

// RankHybrid promotes candidates containing the literal term, preserving the
// vector ordering within each group.
func RankHybrid(candidates []SearchHit, term string, limit int) []SearchHit {
	needle := strings.ToLower(strings.TrimSpace(term))

	keyword := make([]SearchHit, 0, len(candidates))
	semantic := make([]SearchHit, 0, len(candidates))
	for _, hit := range candidates {
		if needle != "" && strings.Contains(strings.ToLower(hit.Document), needle) {
			keyword = append(keyword, hit)
		} else {
			semantic = append(semantic, hit)
		}
	}

	merged := append(keyword, semantic...)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func (c *ChromaClient) query(ctx context.Context, accountID, text string, limit int) ([]SearchHit, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection is nil")
	}
	if limit <= 0 {
		limit = 10
	}

	where := chroma.EqString("account_id", accountID)

	results, err := c.collection.Query(
		ctx,
		chroma.WithQueryTexts(text),
		chroma.WithNResults(limit),
		chroma.WithWhereQuery(where),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	if results == nil || results.CountGroups() == 0 {
		return []SearchHit{}, nil
	}

	idGroups := results.GetIDGroups()
	docGroups := results.GetDocumentsGroups()
	distanceGroups := results.GetDistancesGroups()
	if len(idGroups) == 0 || len(idGroups[0]) == 0 {
		return []SearchHit{}, nil
	}

	hits := make([]SearchHit, 0, len(idGroups[0]))
	for i, id := range idGroups[0] {
		hit := SearchHit{ID: string(id)}
		if len(docGroups) > 0 && i < len(docGroups[0]) {
			hit.Document = docGroups[0][i].ContentString()
		}
		if len(distanceGroups) > 0 && i < len(distanceGroups[0]) {
			// Distance inverted into a similarity-style score.
			hit.Score = 1 / (1 + float64(distanceGroups[0][i]))
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// DeleteAccountDocuments removes every document owned by the account. Part of
// account teardown; there is no per-document deletion path.
func (c *ChromaClient) DeleteAccountDocuments(ctx context.Context, accountID string) error {
	err := c.collection.Delete(ctx, chroma.WithWhereDelete(chroma.EqString("account_id", accountID)))
	if err != nil {
		return fmt.Errorf("failed to delete account documents: %w", err)
	}
	return nil
}
