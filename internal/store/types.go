package store

import (
	"encoding/base64"
	"time"
)

// SourceClass identifies the kind of adapter that produced an article.
// Admission frequencies and lastRun timestamps are tracked per class.
type SourceClass string

const (
	ClassNewsAPI         SourceClass = "newsapi"
	ClassGNews           SourceClass = "gnews"
	ClassYouTube         SourceClass = "youtube"
	ClassYouTubeChannels SourceClass = "youtube_channels"
	ClassBlogger         SourceClass = "blogger"
	ClassRSS             SourceClass = "rss"
)

// AllClasses lists every source class in a stable order.
func AllClasses() []SourceClass {
	return []SourceClass{
		ClassNewsAPI,
		ClassGNews,
		ClassYouTube,
		ClassYouTubeChannels,
		ClassBlogger,
		ClassRSS,
	}
}

// SearchScope controls how keywords are localized before searching.
type SearchScope string

const (
	ScopeBrazil        SearchScope = "br"
	ScopeState         SearchScope = "state"
	ScopeInternational SearchScope = "international"
)

// ArticleID derives the document id of an article from its URL.
// The URL-safe alphabet keeps ids valid as Firestore document ids.
func ArticleID(url string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(url))
}

// Source names the publication an article came from.
type Source struct {
	Name string `firestore:"name" json:"name"`
	URL  string `firestore:"url,omitempty" json:"url,omitempty"`
}

// Sentiment is the document-level sentiment of an article.
type Sentiment struct {
	Score     float64 `firestore:"score" json:"score"`
	Magnitude float64 `firestore:"magnitude" json:"magnitude"`
}

// Article is a single mention stored under a tenant.
type Article struct {
	ID          string      `firestore:"id" json:"id"`
	TenantID    string      `firestore:"tenantId" json:"tenantId"`
	Title       string      `firestore:"title" json:"title"`
	Description string      `firestore:"description" json:"description"`
	URL         string      `firestore:"url" json:"url"`
	Source      Source      `firestore:"source" json:"source"`
	Author      string      `firestore:"author" json:"author,omitempty"`
	PublishedAt time.Time   `firestore:"publishedAt" json:"publishedAt"`
	Keyword     string      `firestore:"keyword" json:"keyword"`
	SourceType  SourceClass `firestore:"sourceType" json:"sourceType"`
	ImageURL    string      `firestore:"imageUrl" json:"imageUrl,omitempty"`
	Sentiment   *Sentiment  `firestore:"sentiment" json:"sentiment,omitempty"`
	Entities    []string    `firestore:"entities" json:"entities,omitempty"`
	ImageLabels []string    `firestore:"imageLabels" json:"imageLabels,omitempty"`
	FetchedAt   time.Time   `firestore:"fetchedAt" json:"fetchedAt"`
}

// Tenant is a client organization. A missing active flag means active on
// every backend.
type Tenant struct {
	ID     string `firestore:"-" json:"id"`
	Name   string `firestore:"name" json:"name"`
	Active bool   `firestore:"active" json:"active"`
}

// Keyword is a search term owned by a tenant.
type Keyword struct {
	ID       string `firestore:"-" json:"id"`
	Word     string `firestore:"word" json:"word"`
	Position int    `firestore:"position" json:"position"`
}

// TenantSettings holds per-tenant search preferences. Only NewAlerts is
// written by the ingestion run.
type TenantSettings struct {
	SearchScope   SearchScope `firestore:"searchScope" json:"searchScope"`
	SearchState   string      `firestore:"searchState" json:"searchState,omitempty"`
	FetchOnlyNew  bool        `firestore:"fetchOnlyNew" json:"fetchOnlyNew"`
	NewAlerts     bool        `firestore:"newAlerts" json:"newAlerts"`
	NewsAPIKey    string      `firestore:"apiKeyNewsApi" json:"apiKeyNewsApi,omitempty"`
	SerpAPIKey    string      `firestore:"apiKeySerpApi" json:"apiKeySerpApi,omitempty"`
	YouTubeAPIKey string      `firestore:"apiKeyYoutube" json:"apiKeyYoutube,omitempty"`
	BloggerAPIKey string      `firestore:"apiKeyBlogger" json:"apiKeyBlogger,omitempty"`
}

// DefaultTenantSettings is used when a tenant has no settings document.
func DefaultTenantSettings() TenantSettings {
	return TenantSettings{SearchScope: ScopeBrazil}
}

// GlobalSettings is the deployment-wide configuration document.
type GlobalSettings struct {
	NewsAPIKey    string `firestore:"apiKeyNewsApi" json:"apiKeyNewsApi,omitempty"`
	SerpAPIKey    string `firestore:"apiKeySerpApi" json:"apiKeySerpApi,omitempty"`
	YouTubeAPIKey string `firestore:"apiKeyYoutube" json:"apiKeyYoutube,omitempty"`
	BloggerAPIKey string `firestore:"apiKeyBlogger" json:"apiKeyBlogger,omitempty"`

	// Newline-delimited endpoint lists.
	RSSFeeds        string `firestore:"rssFeeds" json:"rssFeeds"`
	BlogURLs        string `firestore:"blogUrls" json:"blogUrls"`
	YouTubeChannels string `firestore:"youtubeChannels" json:"youtubeChannels"`

	RSSFrequencyMinutes             int    `firestore:"rssFrequencyMinutes" json:"rssFrequencyMinutes"`
	GNewsFrequencyHours             int    `firestore:"gnewsFrequencyHours" json:"gnewsFrequencyHours"`
	YouTubeFrequencyHours           int    `firestore:"youtubeFrequencyHours" json:"youtubeFrequencyHours"`
	YouTubeFrequencyTime            string `firestore:"youtubeFrequencyTime" json:"youtubeFrequencyTime"`
	YouTubeChannelsFrequencyMinutes int    `firestore:"youtubeChannelsFrequencyMinutes" json:"youtubeChannelsFrequencyMinutes"`
	NewsFrequencyMinutes            int    `firestore:"newsFrequencyMinutes" json:"newsFrequencyMinutes"`
	BlogFrequencyMinutes            int    `firestore:"blogFrequencyMinutes" json:"blogFrequencyMinutes"`

	LastRun map[string]time.Time `firestore:"lastRun" json:"lastRun,omitempty"`
}

// LastRunOf returns the last successful run of a class, if any.
func (g *GlobalSettings) LastRunOf(class SourceClass) (time.Time, bool) {
	if g == nil || g.LastRun == nil {
		return time.Time{}, false
	}
	t, ok := g.LastRun[string(class)]
	return t, ok && !t.IsZero()
}

// FixLock is the singleton mutual-exclusion record of the correction job.
type FixLock struct {
	Running    bool      `firestore:"running" json:"running"`
	StartedAt  time.Time `firestore:"startedAt" json:"startedAt"`
	Owner      string    `firestore:"owner" json:"owner,omitempty"`
	ReleasedAt time.Time `firestore:"releasedAt" json:"releasedAt,omitempty"`
}

// ArticleFix carries the normalized fields the correction job rewrites.
type ArticleFix struct {
	ID         string
	SourceName string
	Author     string
}
