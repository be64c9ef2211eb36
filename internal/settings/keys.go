package settings

import "github.com/amityadav/clipping/internal/store"

// FrequencyKey names the GlobalSettings field throttling a class.
func FrequencyKey(class store.SourceClass) string {
	switch class {
	case store.ClassRSS:
		return "rssFrequencyMinutes"
	case store.ClassGNews:
		return "gnewsFrequencyHours"
	case store.ClassYouTube:
		return "youtubeFrequencyHours"
	case store.ClassYouTubeChannels:
		return "youtubeChannelsFrequencyMinutes"
	case store.ClassNewsAPI:
		return "newsFrequencyMinutes"
	case store.ClassBlogger:
		return "blogFrequencyMinutes"
	default:
		return ""
	}
}

// APIKey resolves the provider key of a class. The tenant key wins over the
// global one.
func APIKey(class store.SourceClass, gs *store.GlobalSettings, ts *store.TenantSettings) string {
	var tenant, global string
	switch class {
	case store.ClassNewsAPI:
		tenant, global = ts.NewsAPIKey, gs.NewsAPIKey
	case store.ClassGNews:
		tenant, global = ts.SerpAPIKey, gs.SerpAPIKey
	case store.ClassYouTube, store.ClassYouTubeChannels:
		tenant, global = ts.YouTubeAPIKey, gs.YouTubeAPIKey
	case store.ClassBlogger:
		tenant, global = ts.BloggerAPIKey, gs.BloggerAPIKey
	}
	if tenant != "" {
		return tenant
	}
	return global
}

// Endpoints returns the newline-delimited endpoint list a class fans out
// over, or nil for classes that query a single API.
func Endpoints(class store.SourceClass, gs *store.GlobalSettings) string {
	switch class {
	case store.ClassRSS:
		return gs.RSSFeeds
	case store.ClassBlogger:
		return gs.BlogURLs
	case store.ClassYouTubeChannels:
		return gs.YouTubeChannels
	default:
		return ""
	}
}

// UsesEndpoints reports whether a class needs a configured endpoint list
// before it can run.
func UsesEndpoints(class store.SourceClass) bool {
	switch class {
	case store.ClassRSS, store.ClassBlogger, store.ClassYouTubeChannels:
		return true
	default:
		return false
	}
}
