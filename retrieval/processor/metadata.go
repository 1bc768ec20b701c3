package processor

import (
	"context"

	"github.com/awslabs/graphrag-toolkit/model"
)

// ClearTopicIDs blanks topic identifiers before results leave the
// retrieval core, keeping internal graph ids out of downstream prompts.
type ClearTopicIDs struct{}

// Name identifies the processor in logs.
func (p *ClearTopicIDs) Name() string { return "clear_topic_ids" }

// Process blanks every topic id.
func (p *ClearTopicIDs) Process(ctx context.Context, c *model.SearchResultCollection, q model.Query) (*model.SearchResultCollection, error) {
	for _, result := range c.Results {
		for _, topic := range result.Topics {
			topic.TopicID = ""
		}
	}
	return c, nil
}

// UpdateChunkMetadata promotes a chunk's "value" metadata entry into its
// text and strips the internal chunk id key from the metadata map.
type UpdateChunkMetadata struct{}

// Name identifies the processor in logs.
func (p *UpdateChunkMetadata) Name() string { return "update_chunk_metadata" }

// Process rewrites chunk metadata in place.
func (p *UpdateChunkMetadata) Process(ctx context.Context, c *model.SearchResultCollection, q model.Query) (*model.SearchResultCollection, error) {
	for _, result := range c.Results {
		for _, topic := range result.Topics {
			for _, chunk := range topic.Chunks {
				if chunk.Metadata == nil {
					continue
				}
				if value, ok := chunk.Metadata["value"].(string); ok && value != "" {
					chunk.Value = value
					delete(chunk.Metadata, "value")
				}
				delete(chunk.Metadata, "chunkId")
			}
		}
	}
	return c, nil
}
