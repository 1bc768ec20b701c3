package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/awslabs/graphrag-toolkit/model"
)

func TestCollection(t *testing.T) {
	c := model.NewSearchResultCollection()
	c.AddEntityContext(model.EntityContext{
		{Entity: model.Entity{EntityID: "e1", Value: "Alice"}, Score: 3},
	})
	c.AddSearchResult(&model.SearchResult{
		Source: &model.Source{SourceID: "src-1"},
		Topics: []*model.Topic{{
			Topic: "Discoveries",
			Statements: []*model.Statement{
				{StatementID: "s1", Statement: "Alice discovered the anomaly", Score: 0.91},
			},
		}},
		Score: 0.91,
	})

	out := Collection(c)
	assert.Contains(t, out, "src-1")
	assert.Contains(t, out, "Discoveries")
	assert.Contains(t, out, "Alice discovered the anomaly")
	assert.Contains(t, out, "alice")
}

func TestCollection_Empty(t *testing.T) {
	assert.Empty(t, Collection(model.NewSearchResultCollection()))
}
