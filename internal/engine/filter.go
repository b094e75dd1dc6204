package engine

import (
	"net/url"
	"regexp"
	"strings"
)

// resultCap is the maximum number of raw search results considered per query.
const resultCap = 10

// excludedDomains are social, directory, and listing sites that never lead
// to a business's own website.
var excludedDomains = []string{
	"facebook.com",
	"instagram.com",
	"linkedin.com",
	"twitter.com",
	"x.com",
	"youtube.com",
	"tiktok.com",
	"pinterest.com",
	"yelp.com",
	"yellowpages.com",
	"bbb.org",
	"angi.com",
	"thumbtack.com",
	"houzz.com",
	"tripadvisor.com",
	"mapquest.com",
	"foursquare.com",
	"glassdoor.com",
	"indeed.com",
	"wikipedia.org",
}

// excludedPathSegments mark pages that are not a business home page.
var excludedPathSegments = []string{
	"/careers",
	"/jobs",
	"/about",
	"/contact",
	"/team",
	"/press",
}

// titleSuffixes are search-listing decorations stripped from business names.
var titleSuffixes = []string{
	" - Google Search",
	" | Site",
	" | Website",
	" Official Site",
}

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// Qualifies reports whether a search result URL is worth auditing.
func Qualifies(rawURL string) bool {
	if strings.TrimSpace(rawURL) == "" {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	for _, d := range excludedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return false
		}
	}

	if strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".gov") {
		return false
	}

	path := strings.ToLower(u.Path)
	for _, seg := range excludedPathSegments {
		if strings.HasPrefix(path, seg) || strings.Contains(path, seg+"/") {
			return false
		}
	}
	if strings.Contains(path, "/wiki/") || strings.HasPrefix(path, "/wiki") {
		return false
	}

	return true
}

// CleanBusinessName strips search-listing suffixes from a result title.
func CleanBusinessName(title string) string {
	name := strings.TrimSpace(title)
	for _, suffix := range titleSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}
	return strings.TrimSpace(name)
}

// ExtractEmail pulls the first email address out of a result snippet.
// Returns "" when none is present; the audit phase is the authoritative
// email source.
func ExtractEmail(snippet string) string {
	return emailPattern.FindString(snippet)
}
