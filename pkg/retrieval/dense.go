package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/nimbium/cirro/pkg/types"
	"github.com/nimbium/cirro/pkg/utils"
)

// denseSearch embeds the query and ranks services by cosine similarity
// against their stored vectors. Services without a stored embedding
// cannot be scored and are skipped.
func (r *Retriever) denseSearch(ctx context.Context, query string, services []*types.CloudService, filters *Filters) (types.RankedList, error) {
	vector, err := r.embedder.EmbedSingle(ctx, strings.ReplaceAll(query, "\n", " "))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored := make([]utils.ScoredItem[*types.CloudService], 0, len(services))
	for _, svc := range services {
		if len(svc.Embedding) == 0 || !filters.Matches(svc) {
			continue
		}
		scored = append(scored, utils.ScoredItem[*types.CloudService]{
			Item:  svc,
			Score: utils.CosineSimilarity(vector, svc.Embedding),
		})
	}

	top := utils.TopKByScore(scored, r.config.DenseTopK)

	list := make(types.RankedList, 0, len(top))
	for i, item := range top {
		c := item.Item.Candidate()
		c.Scores.DenseRank = i + 1
		list = append(list, c)
	}
	return list, nil
}
