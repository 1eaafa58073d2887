package search

import (
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/ysrcpconnect/connect/internal/model"
)

// Result is one search hit over the locally held posts.
type Result struct {
	PostID     string
	AuthorName string
	Snippet    string
	Score      float64
}

// Engine is a Bleve index over the posts the client currently holds, so the
// feed stays searchable offline. The index is rebuilt opportunistically from
// container/cache contents; it is not a second source of truth.
type Engine struct {
	idx bleve.Index
}

// NewEngine opens or creates an on-disk index at indexPath. An empty path
// yields a memory-only index.
func NewEngine(indexPath string) (*Engine, error) {
	if indexPath == "" {
		idx, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, err
		}
		return &Engine{idx: idx}, nil
	}

	if mkErr := os.MkdirAll(filepath.Dir(indexPath), 0o755); mkErr != nil {
		// Open/Create below will surface the real failure
		_ = mkErr
	}

	idx, err := bleve.Open(indexPath)
	if err != nil {
		idx, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, err
		}
	}
	return &Engine{idx: idx}, nil
}

func (e *Engine) Close() error {
	return e.idx.Close()
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	content := bleve.NewTextFieldMapping()
	content.Analyzer = standard.Name
	content.Store = true

	fullContent := bleve.NewTextFieldMapping()
	fullContent.Analyzer = standard.Name
	fullContent.Store = false

	author := bleve.NewTextFieldMapping()
	author.Analyzer = standard.Name
	author.Store = true

	dm.AddFieldMappingsAt("content", content)
	dm.AddFieldMappingsAt("full_content", fullContent)
	dm.AddFieldMappingsAt("author", author)

	im.DefaultMapping = dm
	return im
}

// IndexPosts (re)indexes the given posts in one batch.
func (e *Engine) IndexPosts(posts []model.Post) error {
	batch := e.idx.NewBatch()
	for _, p := range posts {
		_ = batch.Index(p.ID, map[string]any{
			"content":      p.Content,
			"full_content": p.FullContent,
			"author":       p.Author.Name,
		})
	}
	return e.idx.Batch(batch)
}

// RemovePost drops a deleted post from the index.
func (e *Engine) RemovePost(postID string) error {
	return e.idx.Delete(postID)
}

func (e *Engine) DocCount() (uint64, error) {
	return e.idx.DocCount()
}

// Search runs an OR of per-term match and prefix queries across the indexed
// fields, content boosted over author.
func (e *Engine) Search(query string, limit int) ([]*Result, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []*Result{}, nil
	}

	tokens := tokenize(query)
	var qs []bleveQuery.Query
	for _, tok := range tokens {
		qc := bleve.NewMatchQuery(tok)
		qc.SetField("content")
		qc.SetBoost(3.0)
		qs = append(qs, qc)
		qcp := bleve.NewPrefixQuery(strings.ToLower(tok))
		qcp.SetField("content")
		qcp.SetBoost(2.5)
		qs = append(qs, qcp)

		qf := bleve.NewMatchQuery(tok)
		qf.SetField("full_content")
		qf.SetBoost(1.5)
		qs = append(qs, qf)

		qa := bleve.NewMatchQuery(tok)
		qa.SetField("author")
		qa.SetBoost(1.0)
		qs = append(qs, qa)
		qap := bleve.NewPrefixQuery(strings.ToLower(tok))
		qap.SetField("author")
		qap.SetBoost(0.8)
		qs = append(qs, qap)
	}
	if len(qs) == 0 {
		return []*Result{}, nil
	}

	q := bleve.NewDisjunctionQuery(qs...)
	srch := bleve.NewSearchRequestOptions(q, limit, 0, false)
	srch.Fields = []string{"content", "author"}

	res, err := e.idx.Search(srch)
	if err != nil {
		return nil, err
	}

	out := make([]*Result, 0, len(res.Hits))
	for _, h := range res.Hits {
		r := &Result{PostID: h.ID, Score: h.Score}
		if c, ok := h.Fields["content"].(string); ok {
			r.Snippet = truncate(c, 150)
		}
		if a, ok := h.Fields["author"].(string); ok {
			r.AuthorName = a
		}
		out = append(out, r)
	}
	return out, nil
}

// tokenize breaks text into searchable terms, skipping single characters.
func tokenize(text string) []string {
	var terms []string
	current := strings.Builder{}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			current.WriteRune(unicode.ToLower(r))
		} else if current.Len() > 0 {
			if term := current.String(); len(term) > 1 {
				terms = append(terms, term)
			}
			current.Reset()
		}
	}

	if current.Len() > 1 {
		terms = append(terms, current.String())
	}

	return terms
}

func truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen-1] + "…"
}
