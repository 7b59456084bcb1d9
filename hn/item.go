package hn

// Item is a single Hacker News item as returned by the public Firebase API.
// Stories and comments share the same shape; a story's Kids are the ids of
// its top-level comments.
type Item struct {
	ID          int    `json:"id"`
	Type        string `json:"type,omitempty"`
	By          string `json:"by,omitempty"`
	Time        int64  `json:"time,omitempty"`
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	Text        string `json:"text,omitempty"`
	Score       int    `json:"score,omitempty"`
	Descendants int    `json:"descendants,omitempty"`
	Kids        []int  `json:"kids,omitempty"`
	Deleted     bool   `json:"deleted,omitempty"`
	Dead        bool   `json:"dead,omitempty"`

	// Depth is the traversal level assigned while walking a story's comment
	// tree: 0 for a direct reply to the story, incremented per level below.
	Depth int `json:"depth"`
}

// Hidden reports whether the item has been deleted or killed and should be
// excluded from results.
func (i *Item) Hidden() bool {
	return i.Deleted || i.Dead
}
