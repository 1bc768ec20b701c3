package processor

import (
	"context"
	"sort"

	"github.com/awslabs/graphrag-toolkit/log"
	"github.com/awslabs/graphrag-toolkit/model"
)

// DedupResults merges results that reference the same source: topics
// merge by topic id, statements merge by statement id with accumulated
// scores, chunks merge by chunk id. Statements within each topic re-sort
// by score.
type DedupResults struct {
	logger log.Logger
}

// NewDedupResults creates the deduplication processor.
func NewDedupResults(logger log.Logger) *DedupResults {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &DedupResults{logger: logger}
}

// Name identifies the processor in logs.
func (p *DedupResults) Name() string { return "dedup_results" }

// Process merges results by source id.
func (p *DedupResults) Process(ctx context.Context, c *model.SearchResultCollection, q model.Query) (*model.SearchResultCollection, error) {
	bySource := make(map[string]*model.SearchResult)
	var merged []*model.SearchResult

	for _, result := range c.Results {
		sourceID := ""
		if result.Source != nil {
			sourceID = result.Source.SourceID
		}

		existing, ok := bySource[sourceID]
		if !ok {
			copied := *result
			copied.Topics = mergeTopics(nil, result.Topics)
			bySource[sourceID] = &copied
			merged = append(merged, &copied)
			continue
		}
		existing.Topics = mergeTopics(existing.Topics, result.Topics)
	}

	for _, result := range merged {
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

	c = c.WithNewResults(merged)
	c.SortResults()
	return c, nil
}

// mergeTopics folds topics into an existing list, merging by topic id.
func mergeTopics(existing []*model.Topic, incoming []*model.Topic) []*model.Topic {
	byID := make(map[string]*model.Topic, len(existing))
	for _, topic := range existing {
		byID[topic.TopicID] = topic
	}

	for _, topic := range incoming {
		target, ok := byID[topic.TopicID]
		if !ok {
			copied := *topic
			copied.Statements = append([]*model.Statement{}, topic.Statements...)
			copied.Chunks = append([]*model.Chunk{}, topic.Chunks...)
			byID[topic.TopicID] = &copied
			existing = append(existing, &copied)
			continue
		}

		statements := make(map[string]*model.Statement, len(target.Statements))
		for _, statement := range target.Statements {
			statements[statement.StatementID] = statement
		}
		for _, statement := range topic.Statements {
			if known, ok := statements[statement.StatementID]; ok && statement.StatementID != "" {
				if known != statement {
					known.Score += statement.Score
				}
				continue
			}
			target.Statements = append(target.Statements, statement)
			statements[statement.StatementID] = statement
		}

		chunks := make(map[string]struct{}, len(target.Chunks))
		for _, chunk := range target.Chunks {
			chunks[chunk.ChunkID] = struct{}{}
		}
		for _, chunk := range topic.Chunks {
			if _, ok := chunks[chunk.ChunkID]; ok {
				continue
			}
			target.Chunks = append(target.Chunks, chunk)
			chunks[chunk.ChunkID] = struct{}{}
		}
	}
	return existing
}
