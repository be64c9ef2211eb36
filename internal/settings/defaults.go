package settings

import "github.com/amityadav/clipping/internal/store"

const (
	DefaultRSSFrequencyMinutes             = 60
	DefaultGNewsFrequencyHours             = 6
	DefaultYouTubeFrequencyHours           = 12
	DefaultYouTubeChannelsFrequencyMinutes = 60
)

// DefaultGlobalSettings is the document written by Seed. Provider keys and
// endpoint lists stay empty; operators fill them in.
func DefaultGlobalSettings() store.GlobalSettings {
	return store.GlobalSettings{
		RSSFrequencyMinutes:             DefaultRSSFrequencyMinutes,
		GNewsFrequencyHours:             DefaultGNewsFrequencyHours,
		YouTubeFrequencyHours:           DefaultYouTubeFrequencyHours,
		YouTubeChannelsFrequencyMinutes: DefaultYouTubeChannelsFrequencyMinutes,
	}
}
