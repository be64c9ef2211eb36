package core

import (
	"net/url"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Canonical publication names keyed by host suffix.
var knownSources = map[string]string{
	"g1.globo.com":              "G1",
	"oglobo.globo.com":          "O Globo",
	"valor.globo.com":           "Valor Econômico",
	"ge.globo.com":              "ge",
	"globo.com":                 "Globo",
	"folha.uol.com.br":          "Folha de S.Paulo",
	"economia.uol.com.br":       "UOL Economia",
	"uol.com.br":                "UOL",
	"estadao.com.br":            "Estadão",
	"cnnbrasil.com.br":          "CNN Brasil",
	"exame.com":                 "Exame",
	"infomoney.com.br":          "InfoMoney",
	"r7.com":                    "R7",
	"terra.com.br":              "Terra",
	"metropoles.com":            "Metrópoles",
	"correiobraziliense.com.br": "Correio Braziliense",
	"gauchazh.clicrbs.com.br":   "GZH",
	"veja.abril.com.br":         "Veja",
	"istoe.com.br":              "IstoÉ",
	"bbc.com":                   "BBC",
	"reuters.com":               "Reuters",
	"youtube.com":               "YouTube",
	"youtu.be":                  "YouTube",
}

// Path segments that are followed by an author slug.
var authorSegments = map[string]bool{
	"autor":      true,
	"autores":    true,
	"author":     true,
	"colunistas": true,
	"colunista":  true,
}

// Suffixes dropped before deriving a name from an unknown host.
var publicSuffixes = []string{".com.br", ".net.br", ".org.br", ".blog.br", ".com", ".net", ".org", ".br", ".io"}

// Normalize recomputes the source name and author of an article from its
// URL. It is idempotent: feeding its output back yields the same pair.
func Normalize(rawURL, sourceName, author string) (string, string) {
	sourceName = strings.TrimSpace(sourceName)
	author = cleanAuthor(author)

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return sourceName, author
	}
	host := canonicalHost(u.Hostname())

	if isYouTube(host) {
		// YouTube records carry the channel in the source name.
		channel := author
		if rest, ok := strings.CutPrefix(sourceName, "YouTube - "); ok && rest != "" {
			channel = rest
		}
		if channel == "" {
			return "YouTube", author
		}
		return "YouTube - " + channel, channel
	}

	if blog, ok := blogspotName(host); ok {
		if sourceName == "" || looksLikeHost(sourceName) {
			sourceName = humanize(blog)
		}
		return sourceName, author
	}

	if name, ok := lookupKnown(host); ok {
		sourceName = name
	} else if sourceName == "" || looksLikeHost(sourceName) {
		sourceName = nameFromHost(host)
	}
	if author == "" {
		author = authorFromPath(u.Path)
	}
	return sourceName, author
}

func canonicalHost(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, p := range []string{"www.", "m.", "amp.", "mobile."} {
		host = strings.TrimPrefix(host, p)
	}
	return host
}

func isYouTube(host string) bool {
	return host == "youtu.be" || host == "youtube.com" || strings.HasSuffix(host, ".youtube.com")
}

// lookupKnown matches the longest known host suffix.
func lookupKnown(host string) (string, bool) {
	best, name := "", ""
	for suffix, n := range knownSources {
		if (host == suffix || strings.HasSuffix(host, "."+suffix)) && len(suffix) > len(best) {
			best, name = suffix, n
		}
	}
	return name, best != ""
}

func blogspotName(host string) (string, bool) {
	for _, suffix := range []string{".blogspot.com.br", ".blogspot.com"} {
		if name, ok := strings.CutSuffix(host, suffix); ok && name != "" {
			return name, true
		}
	}
	return "", false
}

func nameFromHost(host string) string {
	for _, suffix := range publicSuffixes {
		if trimmed, ok := strings.CutSuffix(host, suffix); ok && trimmed != "" {
			host = trimmed
			break
		}
	}
	labels := strings.Split(host, ".")
	return humanize(labels[len(labels)-1])
}

func authorFromPath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		if authorSegments[strings.ToLower(segments[i])] && segments[i+1] != "" {
			return cleanAuthor(humanize(segments[i+1]))
		}
	}
	return ""
}

func cleanAuthor(author string) string {
	author = strings.TrimSpace(author)
	for {
		stripped := false
		for _, prefix := range []string{"Por ", "por ", "By ", "by "} {
			if rest, ok := strings.CutPrefix(author, prefix); ok {
				author = strings.TrimSpace(rest)
				stripped = true
			}
		}
		if !stripped {
			return author
		}
	}
}

func looksLikeHost(s string) bool {
	return !strings.Contains(s, " ") && strings.Contains(s, ".")
}

func humanize(slug string) string {
	slug = strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	// Casers keep state and are not shared between goroutines.
	return cases.Title(language.BrazilianPortuguese).String(strings.Join(strings.Fields(slug), " "))
}
