package hn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves a canned set of items and the top-story ranking.
type fakeAPI struct {
	items  map[int]*Item
	topIDs []int
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/topstories.json", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(f.topIDs)
	})
	mux.HandleFunc("/item/", func(w http.ResponseWriter, r *http.Request) {
		var id int
		_, err := fmt.Sscanf(r.URL.Path, "/item/%d.json", &id)
		if err != nil {
			http.Error(w, "bad path", http.StatusBadRequest)
			return
		}
		item, ok := f.items[id]
		if !ok {
			// The real API returns literal null for unknown ids.
			_, _ = w.Write([]byte("null"))
			return
		}
		_ = json.NewEncoder(w).Encode(item)
	})
	return mux
}

func newFakeClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	server := httptest.NewServer(api.handler())
	t.Cleanup(server.Close)
	return NewClient(WithBaseURL(server.URL))
}

func TestFetchItem(t *testing.T) {
	client := newFakeClient(t, &fakeAPI{
		items: map[int]*Item{
			100: {ID: 100, Type: "story", Title: "Hello", Score: 42, Kids: []int{101}},
		},
	})

	item, err := client.FetchItem(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 100, item.ID)
	assert.Equal(t, "Hello", item.Title)
	assert.Equal(t, []int{101}, item.Kids)
}

func TestFetchItemNull(t *testing.T) {
	client := newFakeClient(t, &fakeAPI{})

	_, err := client.FetchItem(context.Background(), 12345)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestFetchTopStories(t *testing.T) {
	api := &fakeAPI{
		topIDs: []int{1, 2, 3, 4, 5},
		items: map[int]*Item{
			1: {ID: 1, Title: "first"},
			2: {ID: 2, Title: "second"},
			3: {ID: 3, Title: "third"},
			4: {ID: 4, Title: "fourth"},
			5: {ID: 5, Title: "fifth"},
		},
	}
	client := newFakeClient(t, api)

	stories, err := client.FetchTopStories(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Len(t, stories, 3)

	// Rank order survives the concurrent fetch.
	assert.Equal(t, 1, stories[0].ID)
	assert.Equal(t, 2, stories[1].ID)
	assert.Equal(t, 3, stories[2].ID)
}

func TestFetchTopStoriesSecondPage(t *testing.T) {
	api := &fakeAPI{
		topIDs: []int{1, 2, 3, 4, 5},
		items: map[int]*Item{
			4: {ID: 4, Title: "fourth"},
			5: {ID: 5, Title: "fifth"},
		},
	}
	client := newFakeClient(t, api)

	stories, err := client.FetchTopStories(context.Background(), 2, 3)
	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, 4, stories[0].ID)
	assert.Equal(t, 5, stories[1].ID)
}

func TestFetchTopStoriesDropsFailures(t *testing.T) {
	api := &fakeAPI{
		topIDs: []int{1, 2, 3},
		items: map[int]*Item{
			1: {ID: 1, Title: "first"},
			3: {ID: 3, Title: "third"},
		},
	}
	client := newFakeClient(t, api)

	stories, err := client.FetchTopStories(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Len(t, stories, 2)
	assert.Equal(t, 1, stories[0].ID)
	assert.Equal(t, 3, stories[1].ID)
}

func TestFetchTopStoriesPastEnd(t *testing.T) {
	client := newFakeClient(t, &fakeAPI{topIDs: []int{1, 2}})

	stories, err := client.FetchTopStories(context.Background(), 5, 50)
	require.NoError(t, err)
	assert.Empty(t, stories)
}

func TestItemHidden(t *testing.T) {
	assert.False(t, (&Item{}).Hidden())
	assert.True(t, (&Item{Deleted: true}).Hidden())
	assert.True(t, (&Item{Dead: true}).Hidden())
}
