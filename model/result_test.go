package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeResult(sourceID, topic string, statements map[string]float64) *SearchResult {
	t := &Topic{Topic: topic}
	for id, score := range statements {
		t.Statements = append(t.Statements, &Statement{
			StatementID: id,
			Statement:   "statement " + id,
			Score:       score,
		})
	}
	return &SearchResult{
		Source: &Source{SourceID: sourceID},
		Topics: []*Topic{t},
	}
}

func TestAddSearchResult_DeduplicatesByStatementID(t *testing.T) {
	c := NewSearchResultCollection()

	c.AddSearchResult(makeResult("src-1", "topic a", map[string]float64{"s1": 0.9, "s2": 0.7}))
	c.AddSearchResult(makeResult("src-2", "topic b", map[string]float64{"s2": 0.8, "s3": 0.6}))

	assert.Equal(t, 3, c.StatementCount())
	assert.True(t, c.HasStatement("s1"))
	assert.True(t, c.HasStatement("s2"))
	assert.True(t, c.HasStatement("s3"))

	// s2 exists exactly once; its score accumulated across both sightings
	var s2 *Statement
	count := 0
	for _, result := range c.Results {
		for _, topic := range result.Topics {
			for _, statement := range topic.Statements {
				if statement.StatementID == "s2" {
					s2 = statement
					count++
				}
			}
		}
	}
	require.Equal(t, 1, count)
	assert.InDelta(t, 1.5, s2.Score, 1e-9)
}

func TestAddSearchResult_Idempotent(t *testing.T) {
	c := NewSearchResultCollection()

	c.AddSearchResult(makeResult("src-1", "topic a", map[string]float64{"s1": 0.5}))
	c.AddSearchResult(makeResult("src-1", "topic a", map[string]float64{"s1": 0.5}))

	assert.Equal(t, 1, c.StatementCount())
	assert.Len(t, c.Results, 1)
}

func TestAddSearchResult_DropsEmptyResults(t *testing.T) {
	c := NewSearchResultCollection()

	c.AddSearchResult(&SearchResult{Source: &Source{SourceID: "src-1"}})
	assert.Empty(t, c.Results)

	c.AddSearchResult(nil)
	assert.Empty(t, c.Results)
}

func TestAddEntityContext_ScoresAccumulate(t *testing.T) {
	c := NewSearchResultCollection()

	alice := Entity{EntityID: "e1", Value: "Alice", Classification: "Person"}

	c.AddEntityContext(EntityContext{{Entity: alice, Score: 3}})
	e, ok := c.EntityByID("e1")
	require.True(t, ok)
	first := e.Score

	c.AddEntityContext(EntityContext{{Entity: alice, Score: 2}})
	e, _ = c.EntityByID("e1")
	assert.GreaterOrEqual(t, e.Score, first, "entity score is monotonically non-decreasing")
	assert.InDelta(t, 5.0, e.Score, 1e-9)
}

func TestAddEntityContext_RerankScoreReplaces(t *testing.T) {
	c := NewSearchResultCollection()

	bob := Entity{EntityID: "e2", Value: "Bob"}

	c.AddEntityContext(EntityContext{{Entity: bob, Score: 1, RerankScore: 0.4}})
	c.AddEntityContext(EntityContext{{Entity: bob, Score: 1, RerankScore: 0.9}})

	e, ok := c.EntityByID("e2")
	require.True(t, ok)
	assert.InDelta(t, 0.9, e.RerankScore, 1e-9)
	assert.InDelta(t, 2.0, e.Score, 1e-9)
}

func TestContextStrings(t *testing.T) {
	c := NewSearchResultCollection()

	c.AddEntityContext(EntityContext{
		{Entity: Entity{EntityID: "e1", Value: "Alice"}},
		{Entity: Entity{EntityID: "e2", Value: "Neptune Analytics"}},
	})

	assert.Equal(t, []string{"alice, neptune analytics"}, c.ContextStrings())
}

func TestWithNewResults_PreservesEntityContexts(t *testing.T) {
	c := NewSearchResultCollection()
	c.AddEntityContext(EntityContext{{Entity: Entity{EntityID: "e1", Value: "Alice"}, Score: 1}})
	c.AddSearchResult(makeResult("src-1", "topic a", map[string]float64{"s1": 0.5, "s2": 0.4}))

	kept := c.Results[:1]
	replaced := c.WithNewResults(kept)

	assert.Len(t, replaced.Results, 1)
	assert.Len(t, replaced.EntityContexts, 1)
	assert.True(t, replaced.HasStatement("s1"))
}

func TestStatementString(t *testing.T) {
	s := &Statement{Statement: "Alice discovered the anomaly"}
	assert.Equal(t, "Alice discovered the anomaly", s.String())

	s.Details = "Observed in the March dataset"
	assert.Equal(t, "Alice discovered the anomaly\nObserved in the March dataset", s.String())
}
