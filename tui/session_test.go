package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/vector/analyze"
	"github.com/c360studio/vector/config"
	"github.com/c360studio/vector/hn"
	"github.com/c360studio/vector/llm"
	"github.com/c360studio/vector/report"
)

type fakeLister struct {
	pages map[int][]*hn.Item
}

func (f *fakeLister) FetchTopStories(_ context.Context, page, _ int) ([]*hn.Item, error) {
	return f.pages[page], nil
}

type fakeFetcher struct {
	story    *hn.Item
	article  string
	comments []*hn.Item
}

func (f *fakeFetcher) FetchItem(context.Context, int) (*hn.Item, error) { return f.story, nil }
func (f *fakeFetcher) FetchArticleText(context.Context, string) string  { return f.article }
func (f *fakeFetcher) FetchComments(context.Context, []int, int) []*hn.Item {
	return f.comments
}

// scriptedProvider returns canned replies in order.
type scriptedProvider struct {
	replies []string
	calls   int
}

func (s *scriptedProvider) Name() string { return "ollama" }

func (s *scriptedProvider) Chat(context.Context, []llm.Message) (*llm.ChatResponse, error) {
	reply := s.replies[min(s.calls, len(s.replies)-1)]
	s.calls++
	return &llm.ChatResponse{Content: reply}, nil
}

type sessionHarness struct {
	session  *Session
	out      *strings.Builder
	provider *scriptedProvider
	store    *report.Store
}

func newHarness(t *testing.T, input string, replies ...string) *sessionHarness {
	t.Helper()

	store, err := report.NewStore(t.TempDir())
	require.NoError(t, err)

	fetcher := &fakeFetcher{
		story:    &hn.Item{ID: 777, Title: "A story", URL: "https://example.com", Score: 10, Kids: []int{1}},
		article:  "the article body",
		comments: []*hn.Item{{ID: 1, By: "alice", Text: "nice"}},
	}

	provider := &scriptedProvider{replies: replies}
	analyzer := analyze.New(provider)
	processor := report.NewProcessor(store, fetcher, analyzer)

	lister := &fakeLister{pages: map[int][]*hn.Item{
		1: {
			{ID: 777, Title: "A story", Score: 10, Descendants: 1},
			{ID: 888, Title: "Another story", Score: 5, Descendants: 0},
		},
		2: {
			{ID: 999, Title: "Page two story", Score: 3},
		},
	}}

	out := &strings.Builder{}
	session := New(lister, analyzer, processor, 50, strings.NewReader(input), out,
		WithClock(func() time.Time { return time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC) }))

	return &sessionHarness{session: session, out: out, provider: provider, store: store}
}

func TestSessionDashboardAndQuit(t *testing.T) {
	h := newHarness(t, "q\n")

	require.NoError(t, h.session.Run(context.Background()))

	output := h.out.String()
	assert.Contains(t, output, "Rank")
	assert.Contains(t, output, "| Title")
	assert.Contains(t, output, "A story")
	assert.Contains(t, output, "Another story")
	assert.Contains(t, output, "Bye.")
}

func TestSessionPaging(t *testing.T) {
	h := newHarness(t, "n\np\nq\n")

	require.NoError(t, h.session.Run(context.Background()))

	output := h.out.String()
	assert.Contains(t, output, "Page two story")
	assert.Contains(t, output, "page 2")
}

func TestSessionOpensStoryByRank(t *testing.T) {
	h := newHarness(t, "1\n/back\nq\n", "# A story\n\nThe report.")

	require.NoError(t, h.session.Run(context.Background()))

	output := h.out.String()
	assert.Contains(t, output, "Fetching story 777...")
	assert.Contains(t, output, "The report.")

	// One generation call, report persisted.
	assert.Equal(t, 1, h.provider.calls)
	path, err := h.store.FindReport(777)
	require.NoError(t, err)
	assert.NotEmpty(t, path)
}

func TestSessionChatTurn(t *testing.T) {
	h := newHarness(t, "1\nwhat is this?\n/copy\n/back\nq\n",
		"# Report", "It is a story about things.")

	require.NoError(t, h.session.Run(context.Background()))

	output := h.out.String()
	assert.Contains(t, output, "It is a story about things.")
	assert.Equal(t, 2, h.provider.calls)

	// /copy repeats the last answer.
	assert.Equal(t, 2, strings.Count(output, "It is a story about things."))

	// The turn reached both files.
	path, err := h.store.FindReport(777)
	require.NoError(t, err)
	content, err := h.store.ReadReport(path)
	require.NoError(t, err)
	assert.Contains(t, content, "## Chat Log (2026-08-27 09:00:00)")
	assert.Contains(t, content, "**User**: what is this?")
	assert.Contains(t, content, "**Ollama**: It is a story about things.")

	loaded, err := h.store.LoadContext(777)
	require.NoError(t, err)
	require.Len(t, loaded.ChatHistory, 2)
}

func TestSessionArticleCommand(t *testing.T) {
	h := newHarness(t, "1\n/article\n/back\nq\n", "# Report")

	require.NoError(t, h.session.Run(context.Background()))
	assert.Contains(t, h.out.String(), "the article body")
}

func TestSessionRetryAfterFailedReport(t *testing.T) {
	h := newHarness(t, "1\nretry\n/back\nq\n",
		"Error analyzing story: model fell over", "# Recovered report")

	require.NoError(t, h.session.Run(context.Background()))

	output := h.out.String()
	assert.Contains(t, output, "Analysis failed:")
	assert.Contains(t, output, "model fell over")
	assert.Contains(t, output, "# Recovered report")
	assert.Equal(t, 2, h.provider.calls)

	// Only the regenerated report remains.
	path, err := h.store.FindReport(777)
	require.NoError(t, err)
	content, err := h.store.ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, "# Recovered report", content)
}

func TestSessionBackFromFailedReport(t *testing.T) {
	h := newHarness(t, "1\nback\nq\n", "Error analyzing story: nope")

	require.NoError(t, h.session.Run(context.Background()))
	assert.Equal(t, 1, h.provider.calls)
}

func TestSessionFailedChatTurnNotPersisted(t *testing.T) {
	h := newHarness(t, "1\nquestion?\n/back\nq\n",
		"# Report", "Error generating answer: timeout")

	require.NoError(t, h.session.Run(context.Background()))

	assert.Contains(t, h.out.String(), "Error generating answer: timeout")

	loaded, err := h.store.LoadContext(777)
	require.NoError(t, err)
	assert.Empty(t, loaded.ChatHistory)
}

func TestSessionStatsCommand(t *testing.T) {
	h := newHarness(t, "/stats\nq\n")

	require.NoError(t, h.session.Run(context.Background()))
	// Counter families may be empty before any activity; the command itself
	// must not fail the loop.
	assert.Contains(t, h.out.String(), "Bye.")
}

func TestSessionUnknownCommand(t *testing.T) {
	h := newHarness(t, "dance\nq\n")

	require.NoError(t, h.session.Run(context.Background()))
	assert.Contains(t, h.out.String(), `unknown command "dance"`)
}

func TestUpdateProviderRejectsBrokenConfig(t *testing.T) {
	h := newHarness(t, "q\n")

	before := h.session.analyzer.Provider()

	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "gemini" // no key

	h.session.UpdateProvider(cfg)
	assert.Same(t, before, h.session.analyzer.Provider())
	assert.Contains(t, h.out.String(), "Config change ignored")
}

func TestUpdateProviderSwitches(t *testing.T) {
	h := newHarness(t, "q\n")

	cfg := config.DefaultConfig()
	cfg.LLM.Provider = "gemini"
	cfg.LLM.Gemini.APIKey = "key"

	h.session.UpdateProvider(cfg)
	assert.Equal(t, "gemini", h.session.analyzer.Provider().Name())
	assert.Contains(t, h.out.String(), "Provider switched to Gemini.")
}
