package hn

import (
	"context"
	"sync"
)

// commentBatchSize is the number of concurrent item fetches per traversal
// round.
const commentBatchSize = 10

type queuedComment struct {
	id    int
	depth int
}

// FetchComments walks a comment forest breadth-first, starting from the
// given root ids at depth 0, and returns at most limit comments tagged with
// their depth. Fetch failures and deleted or dead comments are skipped; the
// children of a skipped comment are not enqueued, so subtrees under hidden
// comments are dropped entirely.
//
// Within one round, results are recorded in batch order, but cross-run
// ordering of siblings is not a guarantee callers should rely on.
func (c *Client) FetchComments(ctx context.Context, rootIDs []int, limit int) []*Item {
	if limit <= 0 {
		return nil
	}

	queue := make([]queuedComment, 0, len(rootIDs))
	for _, id := range rootIDs {
		queue = append(queue, queuedComment{id: id, depth: 0})
	}

	comments := make([]*Item, 0, limit)

	for len(queue) > 0 && len(comments) < limit {
		n := min(commentBatchSize, len(queue))
		batch := queue[:n]
		queue = queue[n:]

		results := make([]*Item, n)
		var wg sync.WaitGroup
		for i, q := range batch {
			wg.Add(1)
			go func(i, id int) {
				defer wg.Done()
				item, err := c.FetchItem(ctx, id)
				if err != nil {
					return
				}
				results[i] = item
			}(i, q.id)
		}
		wg.Wait()

		for i, item := range results {
			if item == nil || item.Hidden() {
				continue
			}

			item.Depth = batch[i].depth
			comments = append(comments, item)

			for _, kid := range item.Kids {
				queue = append(queue, queuedComment{id: kid, depth: batch[i].depth + 1})
			}

			if len(comments) >= limit {
				break
			}
		}
	}

	return comments
}
