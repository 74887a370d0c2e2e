// Package analytics computes aggregate views over a flattened bookmark
// list: keyword frequency, per-year timeline, domain ranking, and age
// buckets. All passes are pure and read-only.
package analytics

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/nikbrunner/bmclean/internal/model"
)

const (
	maxKeywords = 30
	maxDomains  = 10
)

// stopWords are tokens too generic to be useful in keyword ranking.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "are": true, "was": true, "were": true,
	"you": true, "your": true, "how": true, "what": true, "why": true,
	"when": true, "where": true, "can": true, "will": true, "not": true,
	"all": true, "any": true, "new": true, "get": true, "use": true,
	"about": true, "into": true, "over": true, "best": true, "top": true,
	"guide": true, "home": true, "page": true, "www": true, "http": true,
	"https": true, "com": true, "org": true,
}

// KeywordCount is one keyword with its occurrence count.
type KeywordCount struct {
	Keyword string
	Count   int
}

// YearCount is the number of bookmarks added in one calendar year.
type YearCount struct {
	Year  int
	Count int
}

// DomainCount is one host with its occurrence count.
type DomainCount struct {
	Domain string
	Count  int
}

// AgeBucket is one age band with the number of bookmarks falling in it.
type AgeBucket struct {
	Label string
	Count int
}

// Result is a full analytics snapshot. It is ephemeral display data,
// never persisted.
type Result struct {
	TotalBookmarks int
	TopKeywords    []KeywordCount
	Years          []YearCount
	TopDomains     []DomainCount
	AgeBuckets     []AgeBucket
}

// Analyze runs all four passes over the flattened list.
func Analyze(bookmarks []*model.Bookmark, now time.Time) Result {
	return Result{
		TotalBookmarks: len(bookmarks),
		TopKeywords:    Keywords(bookmarks),
		Years:          Timeline(bookmarks),
		TopDomains:     Domains(bookmarks),
		AgeBuckets:     AgeBuckets(bookmarks, now),
	}
}

// Keywords tokenizes every title and returns the top 30 tokens by
// descending count. Tokens of length <= 2, purely numeric tokens, and
// stop words are discarded. Ties keep first-encountered order.
func Keywords(bookmarks []*model.Bookmark) []KeywordCount {
	counts := make(map[string]int)
	var order []string
	for _, b := range bookmarks {
		for _, token := range tokenize(b.Title) {
			if len(token) <= 2 || isNumeric(token) || stopWords[token] {
				continue
			}
			if counts[token] == 0 {
				order = append(order, token)
			}
			counts[token]++
		}
	}

	out := make([]KeywordCount, 0, len(order))
	for _, token := range order {
		out = append(out, KeywordCount{Keyword: token, Count: counts[token]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > maxKeywords {
		out = out[:maxKeywords]
	}
	return out
}

// tokenize lowercases the title, replaces every non-alphanumeric rune
// with a space, and splits on whitespace.
func tokenize(title string) []string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return ' '
		}
	}, title)
	return strings.Fields(mapped)
}

func isNumeric(token string) bool {
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Timeline groups bookmarks by the calendar year of AddedAt, ascending.
// Bookmarks without a timestamp are excluded.
func Timeline(bookmarks []*model.Bookmark) []YearCount {
	counts := make(map[int]int)
	for _, b := range bookmarks {
		if b.AddedAt == 0 {
			continue
		}
		counts[time.Unix(b.AddedAt, 0).UTC().Year()]++
	}

	out := make([]YearCount, 0, len(counts))
	for year, count := range counts {
		out = append(out, YearCount{Year: year, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// Domains parses every URL's host, strips a leading "www.", and returns
// the top 10 hosts by descending count. Unparsable URLs are skipped.
func Domains(bookmarks []*model.Bookmark) []DomainCount {
	counts := make(map[string]int)
	var order []string
	for _, b := range bookmarks {
		parsed, err := url.Parse(b.URL)
		if err != nil || parsed.Hostname() == "" {
			continue
		}
		host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
		if counts[host] == 0 {
			order = append(order, host)
		}
		counts[host]++
	}

	out := make([]DomainCount, 0, len(order))
	for _, host := range order {
		out = append(out, DomainCount{Domain: host, Count: counts[host]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if len(out) > maxDomains {
		out = out[:maxDomains]
	}
	return out
}

// ageBand is one fixed band; a bookmark falls into the first band whose
// lower bound (in days) its age exceeds.
type ageBand struct {
	minDays float64
	label   string
}

var ageBands = []ageBand{
	{1825, "Over 5 years"},
	{730, "2-5 years"},
	{365, "1-2 years"},
	{182.5, "6-12 months"},
	{30, "1-6 months"},
	{0, "Less than 1 month"},
}

// AgeBuckets places every timestamped bookmark into exactly one of six
// fixed age bands measured from now. Untimestamped bookmarks are
// excluded; empty bands are omitted, band order is oldest first.
func AgeBuckets(bookmarks []*model.Bookmark, now time.Time) []AgeBucket {
	counts := make(map[string]int)
	for _, b := range bookmarks {
		if b.AddedAt == 0 {
			continue
		}
		ageDays := now.Sub(time.Unix(b.AddedAt, 0)).Hours() / 24
		for _, band := range ageBands {
			if ageDays > band.minDays || band.minDays == 0 {
				counts[band.label]++
				break
			}
		}
	}

	out := make([]AgeBucket, 0, len(ageBands))
	for _, band := range ageBands {
		if counts[band.label] > 0 {
			out = append(out, AgeBucket{Label: band.label, Count: counts[band.label]})
		}
	}
	return out
}
