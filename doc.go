// Package graphrag implements the retrieval core of a lexical-graph RAG
// system: given a graph of sources, chunks, topics, statements, facts and
// entities plus vector indexes over its nodes, it answers a question with
// a ranked, deduplicated collection of statements grouped by source.
//
// Two retriever families cover different retrieval shapes. The
// traversal-based family (retrieval/traversal) locates start nodes by
// vector similarity and walks the graph outward, with a weighted
// composite that fans a query out across sub-retrievers and optional
// LLM-derived subqueries. The semantic-guided family (retrieval/semantic)
// scores statements directly, seeding with cosine similarity and keyword
// ranking and expanding with bounded beam search over entity links.
//
// Both families share the query-context builders in retrieval/query
// (decomposition, keyword extraction, entity search), the post-processing
// pipeline in retrieval/processor (reranking, deduplication, pruning)
// and the TF-IDF reranking in tfidf and rerank. Storage backends plug in
// through the interfaces in storage; language models through llm.
package graphrag
