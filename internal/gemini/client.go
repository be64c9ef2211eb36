package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/amityadav/clipping/internal/enrich"
	"github.com/amityadav/clipping/internal/store"
	"github.com/amityadav/clipping/prompts"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	DefaultModel = "gemini-2.0-flash"
	// Article text beyond this adds cost without changing the answer.
	maxTextRunes = 8000
)

// ImageFetcher downloads image bytes for the vision call.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, string, error)
}

// Client implements the three enrichment analyzers on a Gemini model.
type Client struct {
	genai  *genai.Client
	model  string
	images ImageFetcher
	log    *zap.Logger
}

var (
	_ enrich.SentimentAnalyzer = (*Client)(nil)
	_ enrich.EntityExtractor   = (*Client)(nil)
	_ enrich.ImageLabeler      = (*Client)(nil)
)

func NewClient(ctx context.Context, apiKey, model string, images ImageFetcher, log *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	if model == "" {
		model = DefaultModel
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Client{genai: gc, model: model, images: images, log: log.Named("gemini")}, nil
}

func (c *Client) generate(ctx context.Context, parts ...*genai.Part) (string, error) {
	temperature := float32(0)
	contents := []*genai.Content{{Role: "user", Parts: parts}}
	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty model response")
	}
	return text, nil
}

func (c *Client) AnalyzeSentiment(ctx context.Context, text string) (store.Sentiment, error) {
	raw, err := c.generate(ctx, genai.NewPartFromText(fmt.Sprintf(prompts.Sentiment, clip(text))))
	if err != nil {
		return store.Sentiment{}, err
	}
	return parseSentiment(raw)
}

func (c *Client) ExtractEntities(ctx context.Context, text string) ([]enrich.Entity, error) {
	raw, err := c.generate(ctx, genai.NewPartFromText(fmt.Sprintf(prompts.Entities, clip(text))))
	if err != nil {
		return nil, err
	}
	return parseEntities(raw)
}

func (c *Client) LabelImage(ctx context.Context, imageURL string) ([]string, error) {
	if c.images == nil {
		return nil, errors.New("no image fetcher configured")
	}
	data, mime, err := c.images.FetchImage(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	raw, err := c.generate(ctx,
		genai.NewPartFromText(prompts.ImageLabels),
		genai.NewPartFromBytes(data, mime),
	)
	if err != nil {
		return nil, err
	}
	return parseLabels(raw)
}

func clip(text string) string {
	runes := []rune(text)
	if len(runes) <= maxTextRunes {
		return text
	}
	return string(runes[:maxTextRunes])
}

// cleanJSON strips markdown fences some models wrap around JSON output.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parseSentiment(raw string) (store.Sentiment, error) {
	var out store.Sentiment
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &out); err != nil {
		return store.Sentiment{}, fmt.Errorf("failed to parse sentiment: %w", err)
	}
	if out.Score < -1 {
		out.Score = -1
	}
	if out.Score > 1 {
		out.Score = 1
	}
	if out.Magnitude < 0 {
		out.Magnitude = 0
	}
	return out, nil
}

func parseEntities(raw string) ([]enrich.Entity, error) {
	var items []struct {
		Name     string  `json:"name"`
		Type     string  `json:"type"`
		Salience float64 `json:"salience"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &items); err != nil {
		return nil, fmt.Errorf("failed to parse entities: %w", err)
	}
	out := make([]enrich.Entity, 0, len(items))
	for _, it := range items {
		out = append(out, enrich.Entity{
			Name:     strings.TrimSpace(it.Name),
			Type:     strings.ToUpper(strings.TrimSpace(it.Type)),
			Salience: it.Salience,
		})
	}
	return out, nil
}

func parseLabels(raw string) ([]string, error) {
	var labels []string
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &labels); err != nil {
		return nil, fmt.Errorf("failed to parse image labels: %w", err)
	}
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			out = append(out, l)
		}
	}
	return out, nil
}
