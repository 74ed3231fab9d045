package chat

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"karebot/internal/domain"
	"karebot/internal/news"
)

// newsLimit caps how many articles a news turn carries.
const newsLimit = 5

var newsKeywords = []string{"news", "latest", "recent", "trending", "update", "breaking"}

var newsKeywordRe = regexp.MustCompile(`(?i)news|latest|recent|trending|update|breaking`)

// News answers headline queries via a news.Fetcher. An empty fetch
// result still produces a reply; fetch errors make the strategy not
// applicable.
type News struct {
	fetcher news.Fetcher
}

func NewNews(fetcher news.Fetcher) *News {
	if fetcher == nil {
		fetcher = news.NoopFetcher{}
	}
	return &News{fetcher: fetcher}
}

func (n *News) Name() string { return "news" }

// isNewsQuery reports whether the lowercased input contains a news
// indicator keyword.
func isNewsQuery(lower string) bool {
	for _, kw := range newsKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// newsCategory maps hint words to a category, first match wins.
func newsCategory(lower string) string {
	switch {
	case strings.Contains(lower, "tech"):
		return "technology"
	case strings.Contains(lower, "business"), strings.Contains(lower, "finance"):
		return "business"
	case strings.Contains(lower, "sport"):
		return "sports"
	case strings.Contains(lower, "health"), strings.Contains(lower, "science"):
		return "science"
	default:
		return "general"
	}
}

// searchTerm strips the indicator keywords from the original input.
func searchTerm(text string) string {
	return strings.TrimSpace(newsKeywordRe.ReplaceAllString(text, ""))
}

func (n *News) Respond(ctx context.Context, q Query) (domain.Turn, bool, error) {
	if !isNewsQuery(q.Lower) {
		return domain.Turn{}, false, nil
	}

	category := newsCategory(q.Lower)
	term := searchTerm(q.Text)
	articles, err := n.fetcher.Fetch(ctx, category, term)
	if err != nil {
		return domain.Turn{}, false, fmt.Errorf("fetch news: %w", err)
	}
	if len(articles) > newsLimit {
		articles = articles[:newsLimit]
	}

	if len(articles) == 0 {
		return domain.Turn{
			Role:    domain.RoleBot,
			Type:    domain.TurnText,
			Content: fmt.Sprintf("I couldn't find recent news for %q. Try a different topic or ask me another question!", q.Text),
		}, true, nil
	}

	var headline string
	if term != "" {
		headline = fmt.Sprintf("Here are the latest articles about %q:", term)
	} else {
		headline = fmt.Sprintf("Here are the latest %s news:", titleCase(category))
	}
	return domain.Turn{
		Role:    domain.RoleBot,
		Type:    domain.TurnNews,
		Content: headline,
		News:    articles,
	}, true, nil
}

// titleCase uppercases the first letter only, matching category names
// like "Technology".
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
