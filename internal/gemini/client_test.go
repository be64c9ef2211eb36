package gemini

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/amityadav/clipping/internal/scraper"
	"go.uber.org/zap"
)

func TestParseSentiment(t *testing.T) {
	s, err := parseSentiment("```json\n{\"score\": 1.7, \"magnitude\": -2}\n```")
	if err != nil {
		t.Fatalf("parseSentiment: %v", err)
	}
	if s.Score != 1 || s.Magnitude != 0 {
		t.Errorf("sentiment not clamped: %+v", s)
	}
	if _, err := parseSentiment("not json"); err == nil {
		t.Error("expected error for malformed output")
	}
}

func TestParseEntities(t *testing.T) {
	ents, err := parseEntities(`[{"name": " Acme ", "type": "organization", "salience": 0.8}]`)
	if err != nil {
		t.Fatalf("parseEntities: %v", err)
	}
	if len(ents) != 1 || ents[0].Name != "Acme" || ents[0].Type != "ORGANIZATION" {
		t.Errorf("entities = %+v", ents)
	}
}

func TestParseLabels(t *testing.T) {
	labels, err := parseLabels(`["Building", " ", "Crowd"]`)
	if err != nil {
		t.Fatalf("parseLabels: %v", err)
	}
	if strings.Join(labels, ",") != "building,crowd" {
		t.Errorf("labels = %v", labels)
	}
}

func TestClip(t *testing.T) {
	long := strings.Repeat("é", maxTextRunes+10)
	if n := len([]rune(clip(long))); n != maxTextRunes {
		t.Errorf("clip kept %d runes", n)
	}
}

func TestLiveSentiment(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set")
	}
	c, err := NewClient(context.Background(), apiKey, os.Getenv("GEMINI_MODEL"), scraper.NewScraper(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	s, err := c.AnalyzeSentiment(context.Background(), "Acme bate recorde de vendas e comemora resultado excelente.")
	if err != nil {
		t.Fatalf("AnalyzeSentiment: %v", err)
	}
	if s.Score <= 0 {
		t.Errorf("expected positive score, got %+v", s)
	}
}
