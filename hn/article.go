package hn

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// Fixed sentinel strings returned by FetchArticleText. The caller embeds
// these directly as the article text instead of handling errors.
const (
	MsgNoURL          = "No URL provided."
	MsgPDFUnsupported = "PDF content extraction not supported."
	MsgNoContent      = "Could not extract article text."
)

// ArticleMaxChars caps the extracted article text length.
const ArticleMaxChars = 20000

// maxArticleResponseSize limits article page downloads.
const maxArticleResponseSize = 10 * 1024 * 1024 // 10MB

// browserUserAgent is sent with article requests; some sites refuse
// non-browser agents.
const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.114 Safari/537.36"

// FetchArticleText downloads the page at rawURL and extracts its readable
// main content as Markdown, truncated to ArticleMaxChars. It never returns
// an error: missing and .pdf URLs yield fixed sentinel strings, and any
// fetch or extraction failure yields a human-readable message embedded as
// the text itself.
func (c *Client) FetchArticleText(ctx context.Context, rawURL string) string {
	if rawURL == "" {
		return MsgNoURL
	}

	// Extension check only; PDF bodies are useless to the extractor.
	if strings.HasSuffix(strings.ToLower(rawURL), ".pdf") {
		return MsgPDFUnsupported
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Sprintf("Failed to extract text: %v", err)
	}

	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Sprintf("Failed to extract text: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Failed to extract text: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxArticleResponseSize))
	if err != nil {
		return fmt.Sprintf("Failed to extract text: %v", err)
	}

	text, err := c.extractReadableText(body, rawURL)
	if err != nil {
		return fmt.Sprintf("Failed to extract text: %v", err)
	}
	if text == "" {
		return MsgNoContent
	}

	if len(text) > ArticleMaxChars {
		text = text[:ArticleMaxChars]
	}
	return text
}

// extractReadableText runs readability extraction over the page and converts
// the surviving content to Markdown. Falls back to the extractor's plain
// text when Markdown conversion fails.
func (c *Client) extractReadableText(page []byte, rawURL string) (string, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(page), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}

	markdown, err := c.converter.ConvertString(article.Content)
	if err != nil {
		c.logger.Debug("Markdown conversion failed, using plain text", "url", rawURL, "error", err)
		return strings.TrimSpace(article.TextContent), nil
	}

	return strings.TrimSpace(markdown), nil
}
