package search

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ysrcpconnect/connect/internal/model"
)

func newMemEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine("")
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

func indexedPosts() []model.Post {
	return []model.Post{
		{
			ID:      "p1",
			Author:  model.UserSummary{Name: "Sashi Kumar"},
			Content: "Village outreach program kicks off in Kadapa district",
		},
		{
			ID:          "p2",
			Author:      model.UserSummary{Name: "Ravi Teja"},
			Content:     "Welfare scheme enrollment drive",
			FullContent: "Full details of the healthcare welfare scheme enrollment for farmers",
		},
		{
			ID:      "p3",
			Author:  model.UserSummary{Name: "Sashi Kumar"},
			Content: "Road repair work completed near the bus stand",
		},
	}
}

func TestEngine_IndexAndSearch(t *testing.T) {
	engine := newMemEngine(t)
	require.NoError(t, engine.IndexPosts(indexedPosts()))

	count, err := engine.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	results, err := engine.Search("outreach", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].PostID)
	assert.Equal(t, "Sashi Kumar", results[0].AuthorName)
	assert.Contains(t, results[0].Snippet, "outreach")
}

func TestEngine_SearchByAuthor(t *testing.T) {
	engine := newMemEngine(t)
	require.NoError(t, engine.IndexPosts(indexedPosts()))

	results, err := engine.Search("sashi", 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.PostID)
	}
	assert.ElementsMatch(t, []string{"p1", "p3"}, ids)
}

func TestEngine_SearchFullContent(t *testing.T) {
	engine := newMemEngine(t)
	require.NoError(t, engine.IndexPosts(indexedPosts()))

	results, err := engine.Search("healthcare", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p2", results[0].PostID)
}

func TestEngine_PrefixMatch(t *testing.T) {
	engine := newMemEngine(t)
	require.NoError(t, engine.IndexPosts(indexedPosts()))

	results, err := engine.Search("welf", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "p2", results[0].PostID)
}

func TestEngine_ContentBoostedOverAuthor(t *testing.T) {
	engine := newMemEngine(t)
	require.NoError(t, engine.IndexPosts([]model.Post{
		{ID: "author-hit", Author: model.UserSummary{Name: "Kadapa Office"}, Content: "weekly meeting notes"},
		{ID: "content-hit", Author: model.UserSummary{Name: "Ravi Teja"}, Content: "Kadapa rally this weekend"},
	}))

	results, err := engine.Search("kadapa", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "content-hit", results[0].PostID)
}

func TestEngine_ShortQueryReturnsNothing(t *testing.T) {
	engine := newMemEngine(t)
	require.NoError(t, engine.IndexPosts(indexedPosts()))

	for _, q := range []string{"", " ", "a"} {
		results, err := engine.Search(q, 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	}
}

func TestEngine_RemovePost(t *testing.T) {
	engine := newMemEngine(t)
	require.NoError(t, engine.IndexPosts(indexedPosts()))

	require.NoError(t, engine.RemovePost("p1"))

	count, err := engine.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	results, err := engine.Search("outreach", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_ReindexOverwrites(t *testing.T) {
	engine := newMemEngine(t)
	require.NoError(t, engine.IndexPosts(indexedPosts()))

	updated := []model.Post{{
		ID:      "p1",
		Author:  model.UserSummary{Name: "Sashi Kumar"},
		Content: "Updated announcement about the irrigation project",
	}}
	require.NoError(t, engine.IndexPosts(updated))

	results, err := engine.Search("irrigation", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].PostID)

	results, err = engine.Search("outreach", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_PersistsOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bleve")

	engine, err := NewEngine(path)
	require.NoError(t, err)
	require.NoError(t, engine.IndexPosts(indexedPosts()))
	require.NoError(t, engine.Close())

	reopened, err := NewEngine(path)
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"village", "outreach"}, tokenize("Village outreach!"))
	assert.Equal(t, []string{"mla2024"}, tokenize("MLA2024"))
	assert.Nil(t, tokenize("a b c"), "single characters are skipped")
}
