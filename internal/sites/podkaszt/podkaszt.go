// Package podkaszt adapts the podkaszt.hu broadcast archive to the sites
// contracts. The archive is a server-rendered table listing with no stable
// API, so everything here is markup heuristics: row cells for metadata,
// href patterns for episode and producer pages, and a handful of fallbacks
// for rows that only expose their link in an onclick handler.
package podkaszt

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"podhaul/internal/ledger"
	"podhaul/internal/logging"
	"podhaul/internal/sites"
)

var (
	dateRe       = regexp.MustCompile(`\b(20\d{2}-\d{2}-\d{2})\b`)
	onclickURLRe = regexp.MustCompile(`(https?://[^\s'";]+|/[A-Za-z0-9_\-./%]+)`)
	absURLRe     = regexp.MustCompile(`https?://[^\s'"<>]+`)
	rssLabelRe   = regexp.MustCompile(`RSS:\s*(https?://\S+)`)
)

// Source scrapes the paginated archive listing rooted at a base URL.
type Source struct {
	client  *resty.Client
	baseURL string
	logger  *slog.Logger

	// variant remembers which pagination scheme the site answered to so
	// later pages skip the probing. -1 until a page past the first works.
	variant int
}

// New builds a Source for the listing at baseURL.
func New(client *resty.Client, baseURL string, logger *slog.Logger) *Source {
	baseURL = strings.TrimSpace(baseURL)
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Source{
		client:  client,
		baseURL: baseURL,
		logger:  logging.NewComponentLogger(logger, "podkaszt"),
		variant: -1,
	}
}

// Name implements sites.Source.
func (s *Source) Name() string { return "podkaszt" }

// ListPage fetches one listing page and extracts its episode rows. The
// pagination scheme is unknown up front, so pages past the first are probed
// through a list of URL shapes; the first shape that both fetches and
// yields rows wins and is remembered. A first page without rows means the
// listing is unreachable or its markup changed, which is fatal. A later
// page where no shape yields rows is the end of the listing.
func (s *Source) ListPage(ctx context.Context, page int) (*sites.Page, error) {
	var (
		lastErr error
		fetched bool
	)
	urls := s.pageURLs(page)
	for _, index := range s.probeOrder(len(urls)) {
		pageURL := urls[index]
		body, err := s.get(ctx, pageURL)
		if err != nil {
			lastErr = err
			continue
		}
		fetched = true

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			lastErr = fmt.Errorf("parse %s: %w", pageURL, err)
			continue
		}
		candidates := extractCandidates(doc, pageURL)
		if len(candidates) == 0 {
			s.logger.Debug("listing variant yielded no rows", "page", page, "url", pageURL)
			continue
		}

		if page > 1 && s.variant != index {
			s.variant = index
			s.logger.Debug("pagination scheme selected", "page", page, "url", pageURL)
		}
		return &sites.Page{Number: page, ListingURL: pageURL, Candidates: candidates}, nil
	}

	if !fetched {
		return nil, fmt.Errorf("listing page %d: %w", page, lastErr)
	}
	if page <= 1 {
		return nil, fmt.Errorf("listing page 1 at %s contains no episode rows", s.baseURL)
	}
	return nil, sites.ErrNoMorePages
}

// EpisodeMedia implements sites.EpisodeSource. It collects every direct
// audio URL an episode page exposes: audio and source elements are trusted
// as-is, anchors and raw absolute URLs in the markup only count when they
// carry a recognized audio extension. The result is sorted for stable
// first-candidate selection.
func (s *Source) EpisodeMedia(ctx context.Context, episodeURL string) ([]string, error) {
	body, err := s.get(ctx, episodeURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", episodeURL, err)
	}

	found := make(map[string]struct{})
	doc.Find("audio[src]").Each(func(_ int, el *goquery.Selection) {
		if resolved := sites.Absolutize(episodeURL, el.AttrOr("src", "")); resolved != "" {
			found[resolved] = struct{}{}
		}
	})
	doc.Find("source[src]").Each(func(_ int, el *goquery.Selection) {
		if resolved := sites.Absolutize(episodeURL, el.AttrOr("src", "")); resolved != "" {
			found[resolved] = struct{}{}
		}
	})
	doc.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		resolved := sites.Absolutize(episodeURL, anchor.AttrOr("href", ""))
		if sites.IsAudioURL(resolved) {
			found[resolved] = struct{}{}
		}
	})
	for _, raw := range absURLRe.FindAllString(string(body), -1) {
		if sites.IsAudioURL(raw) {
			found[raw] = struct{}{}
		}
	}

	urls := make([]string, 0, len(found))
	for mediaURL := range found {
		urls = append(urls, mediaURL)
	}
	sort.Strings(urls)
	return urls, nil
}

// ProducerFeed implements sites.EpisodeSource. Producer pages advertise
// their feed either as literal "RSS: https://..." text or as an anchor
// labelled RSS; "" means the page advertises none.
func (s *Source) ProducerFeed(ctx context.Context, producerURL string) (string, error) {
	body, err := s.get(ctx, producerURL)
	if err != nil {
		return "", err
	}

	if match := rssLabelRe.FindSubmatch(body); match != nil {
		return strings.TrimRight(string(match[1]), `)"'`), nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", producerURL, err)
	}
	feedURL := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		href := strings.TrimSpace(anchor.AttrOr("href", ""))
		if strings.Contains(strings.ToLower(anchor.Text()), "rss") && strings.HasPrefix(href, "http") {
			feedURL = href
			return false
		}
		return true
	})
	return feedURL, nil
}

func (s *Source) get(ctx context.Context, pageURL string) ([]byte, error) {
	resp, err := s.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode())
	}
	return resp.Body(), nil
}

// pageURLs returns the URL shapes a page number might live under. Page 1
// is always the base listing; later pages try path segments first, then
// the query-parameter spellings.
func (s *Source) pageURLs(page int) []string {
	if page <= 1 {
		return []string{s.baseURL}
	}
	number := strconv.Itoa(page)
	return []string{
		s.baseURL + number + "/",
		s.baseURL + number,
		s.baseURL + "?page=" + number,
		s.baseURL + "?p=" + number,
		s.baseURL + "?oldal=" + number,
	}
}

func (s *Source) probeOrder(count int) []int {
	order := make([]int, 0, count)
	if s.variant >= 0 && s.variant < count {
		order = append(order, s.variant)
	}
	for index := 0; index < count; index++ {
		if index != s.variant {
			order = append(order, index)
		}
	}
	return order
}

// extractCandidates walks the listing table. A row counts when it has at
// least a title and a producer cell plus some page link to key on; rows
// repeating an already-seen link are collapsed.
func extractCandidates(doc *goquery.Document, pageURL string) []sites.Candidate {
	seen := make(map[string]struct{})
	var candidates []sites.Candidate
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		episodeURL, producerURL := rowLinks(row, pageURL)
		pageLink := episodeURL
		if pageLink == "" {
			pageLink = producerURL
		}
		if pageLink == "" {
			return
		}
		if _, dup := seen[pageLink]; dup {
			return
		}
		seen[pageLink] = struct{}{}

		candidates = append(candidates, sites.Candidate{
			Key:         ledger.KeyFromURL(pageLink),
			Title:       collapseSpace(cells.Eq(0).Text()),
			Producer:    collapseSpace(cells.Eq(1).Text()),
			PubDate:     dateRe.FindString(row.Text()),
			EpisodeURL:  pageLink,
			ProducerURL: producerURL,
		})
	})
	return candidates
}

// rowLinks picks the producer page (first /eloado/ href) and the episode
// page (first episode-looking href) out of a row, falling back to a URL
// embedded in the row's onclick handler. Asset links never qualify.
func rowLinks(row *goquery.Selection, pageURL string) (episodeURL, producerURL string) {
	var links []string
	row.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href := strings.TrimSpace(anchor.AttrOr("href", ""))
		if href == "" || strings.Contains(href, "/assets/") {
			return
		}
		if resolved := sites.Absolutize(pageURL, href); resolved != "" {
			links = append(links, resolved)
		}
	})

	for _, link := range links {
		if strings.Contains(link, "/eloado/") {
			producerURL = link
			break
		}
	}
	for _, link := range links {
		if isEpisodeLink(link) {
			episodeURL = link
			break
		}
	}
	if episodeURL == "" {
		if onclick, ok := row.Attr("onclick"); ok {
			if match := onclickURLRe.FindString(onclick); match != "" {
				episodeURL = sites.Absolutize(pageURL, match)
			}
		}
	}
	return episodeURL, producerURL
}

// isEpisodeLink filters navigation pages under /adasok/ (the listing
// itself plus the date and popularity indexes) out of episode detection.
func isEpisodeLink(link string) bool {
	if strings.Contains(link, "/adasok/uj") ||
		strings.Contains(link, "/adasok/datum/") ||
		strings.Contains(link, "/adasok/nepszeru") {
		return false
	}
	return strings.Contains(link, "/adas/") || strings.Contains(link, "/adasok/")
}

func collapseSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
