package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/awslabs/graphrag-toolkit/model"
	"github.com/awslabs/graphrag-toolkit/storage"
)

// statementDetailsQuery materializes statement references into their
// topic, chunk and source context.
const statementDetailsQuery = `
MATCH (statement:` + "`__Statement__`" + `)-[:` + "`__BELONGS_TO__`" + `]->(topic:` + "`__Topic__`" + `),
      (statement)-[:` + "`__MENTIONED_IN__`" + `]->(chunk:` + "`__Chunk__`" + `)-[:` + "`__EXTRACTED_FROM__`" + `]->(source:` + "`__Source__`" + `)
WHERE statement.statementId IN $statementIds
RETURN source.sourceId    AS sourceId,
       source.metadata    AS sourceMetadata,
       topic.topicId      AS topicId,
       topic.value        AS topic,
       statement.statementId AS statementId,
       statement.value    AS statement,
       statement.details  AS details,
       chunk.chunkId      AS chunkId,
       chunk.value        AS chunk`

// SearchResultsForRefs materializes statement references into search
// results grouped by source and topic. Scores carry over from the
// references; each result's score is its best statement score. References
// whose statements no longer exist in the graph are dropped.
func SearchResultsForRefs(ctx context.Context, store storage.GraphStore, refs []StatementRef) ([]*model.SearchResult, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	scores := make(map[string]float64, len(refs))
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if _, ok := scores[ref.StatementID]; !ok {
			ids = append(ids, ref.StatementID)
		}
		if ref.Score > scores[ref.StatementID] {
			scores[ref.StatementID] = ref.Score
		}
	}

	rows, err := store.ExecuteQuery(ctx, statementDetailsQuery, map[string]any{"statementIds": ids})
	if err != nil {
		return nil, fmt.Errorf("materializing %d statements: %w", len(ids), err)
	}

	var results []*model.SearchResult
	bySource := make(map[string]*model.SearchResult)
	byTopic := make(map[string]*model.Topic)
	chunkSeen := make(map[string]bool)

	for _, row := range rows {
		sourceID := rowString(row, "sourceId")
		topicID := rowString(row, "topicId")
		statementID := rowString(row, "statementId")
		if sourceID == "" || topicID == "" || statementID == "" {
			continue
		}

		result, ok := bySource[sourceID]
		if !ok {
			result = &model.SearchResult{
				Source: &model.Source{
					SourceID: sourceID,
					Metadata: rowStringMap(row, "sourceMetadata"),
				},
			}
			bySource[sourceID] = result
			results = append(results, result)
		}

		topicKey := sourceID + "|" + topicID
		topic, ok := byTopic[topicKey]
		if !ok {
			topic = &model.Topic{
				TopicID: topicID,
				Topic:   rowString(row, "topic"),
			}
			byTopic[topicKey] = topic
			result.Topics = append(result.Topics, topic)
		}

		chunkID := rowString(row, "chunkId")
		chunkKey := topicKey + "|" + chunkID
		if chunkID != "" && !chunkSeen[chunkKey] {
			chunkSeen[chunkKey] = true
			topic.Chunks = append(topic.Chunks, &model.Chunk{
				ChunkID: chunkID,
				Value:   rowString(row, "chunk"),
			})
		}

		topic.Statements = append(topic.Statements, &model.Statement{
			StatementID: statementID,
			Statement:   rowString(row, "statement"),
			Details:     rowString(row, "details"),
			ChunkID:     chunkID,
			Score:       scores[statementID],
		})
	}

	for _, result := range results {
		var best float64
		for _, topic := range result.Topics {
			sort.SliceStable(topic.Statements, func(a, b int) bool {
				return topic.Statements[a].Score > topic.Statements[b].Score
			})
			for _, statement := range topic.Statements {
				if statement.Score > best {
					best = statement.Score
				}
			}
		}
		result.Score = best
	}
	return results, nil
}

// rowString reads a string projection from a graph query row.
func rowString(row map[string]any, key string) string {
	s, _ := row[key].(string)
	return s
}

// rowStringMap reads a map projection, stringifying its values.
func rowStringMap(row map[string]any, key string) map[string]string {
	raw, ok := row[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
