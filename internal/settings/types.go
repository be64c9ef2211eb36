package settings

import (
	"time"

	"github.com/amityadav/clipping/internal/store"
)

// Policy is the resolved admission rule of one source class.
type Policy struct {
	// Frequency is the minimum time between runs; zero means every run.
	Frequency time.Duration
	// Window is an optional HH:MM wall-clock target.
	Window string
}

// GetPolicy returns the policy for a class, falling back to defaults for
// frequencies left unset in the document.
func GetPolicy(gs *store.GlobalSettings, class store.SourceClass) Policy {
	if gs == nil {
		gs = &store.GlobalSettings{}
	}
	pick := func(v, def int, unit time.Duration) time.Duration {
		if v > 0 {
			return time.Duration(v) * unit
		}
		return time.Duration(def) * unit
	}
	d := DefaultGlobalSettings()
	switch class {
	case store.ClassRSS:
		return Policy{Frequency: pick(gs.RSSFrequencyMinutes, d.RSSFrequencyMinutes, time.Minute)}
	case store.ClassGNews:
		return Policy{Frequency: pick(gs.GNewsFrequencyHours, d.GNewsFrequencyHours, time.Hour)}
	case store.ClassYouTube:
		return Policy{Frequency: pick(gs.YouTubeFrequencyHours, d.YouTubeFrequencyHours, time.Hour)}
	case store.ClassYouTubeChannels:
		return Policy{
			Frequency: pick(gs.YouTubeChannelsFrequencyMinutes, d.YouTubeChannelsFrequencyMinutes, time.Minute),
			Window:    gs.YouTubeFrequencyTime,
		}
	case store.ClassNewsAPI:
		return Policy{Frequency: time.Duration(gs.NewsFrequencyMinutes) * time.Minute}
	case store.ClassBlogger:
		return Policy{Frequency: time.Duration(gs.BlogFrequencyMinutes) * time.Minute}
	default:
		return Policy{}
	}
}
