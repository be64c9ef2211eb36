package settings

import (
	"context"
	"testing"
	"time"

	"github.com/amityadav/clipping/internal/store"
	"go.uber.org/zap"
)

func TestGetPolicyDefaultsAndOverrides(t *testing.T) {
	gs := &store.GlobalSettings{RSSFrequencyMinutes: 15, YouTubeFrequencyTime: "08:00"}

	if p := GetPolicy(gs, store.ClassRSS); p.Frequency != 15*time.Minute {
		t.Errorf("rss frequency = %v", p.Frequency)
	}
	if p := GetPolicy(gs, store.ClassGNews); p.Frequency != DefaultGNewsFrequencyHours*time.Hour {
		t.Errorf("gnews frequency = %v, want default", p.Frequency)
	}
	p := GetPolicy(gs, store.ClassYouTubeChannels)
	if p.Window != "08:00" || p.Frequency != DefaultYouTubeChannelsFrequencyMinutes*time.Minute {
		t.Errorf("channels policy = %+v", p)
	}
	if p := GetPolicy(gs, store.ClassNewsAPI); p.Frequency != 0 {
		t.Errorf("newsapi frequency = %v, want every run", p.Frequency)
	}
}

func TestAPIKeyTenantOverridesGlobal(t *testing.T) {
	gs := &store.GlobalSettings{YouTubeAPIKey: "global", NewsAPIKey: "global-news"}
	ts := &store.TenantSettings{YouTubeAPIKey: "tenant"}

	if k := APIKey(store.ClassYouTubeChannels, gs, ts); k != "tenant" {
		t.Errorf("youtube key = %q", k)
	}
	if k := APIKey(store.ClassNewsAPI, gs, ts); k != "global-news" {
		t.Errorf("newsapi key = %q", k)
	}
	if k := APIKey(store.ClassRSS, gs, ts); k != "" {
		t.Errorf("rss key = %q, want none", k)
	}
}

func TestSeedWritesOnlyWhenMissing(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := NewService(st, zap.NewNop())

	seeded, err := svc.Seed(ctx)
	if err != nil || !seeded {
		t.Fatalf("first seed: seeded=%v err=%v", seeded, err)
	}
	gs, err := st.GetGlobalSettings(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if gs.RSSFrequencyMinutes != DefaultRSSFrequencyMinutes {
		t.Errorf("seeded document = %+v", gs)
	}

	gs.RSSFeeds = "https://custom/feed"
	if err := st.SaveGlobalSettings(ctx, gs); err != nil {
		t.Fatalf("save: %v", err)
	}
	seeded, err = svc.Seed(ctx)
	if err != nil || seeded {
		t.Fatalf("second seed: seeded=%v err=%v", seeded, err)
	}
	gs, _ = st.GetGlobalSettings(ctx)
	if gs.RSSFeeds != "https://custom/feed" {
		t.Errorf("seed overwrote existing document")
	}
}
