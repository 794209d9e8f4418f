// Package scraper reads title, description and main text from a web page with
// headless Chrome. It never returns an error: failures yield a degraded record.
package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"explorer/internal/logger"
	textutil "explorer/internal/pkg/text"
	"explorer/internal/types"

	"github.com/chromedp/chromedp"
)

const (
	maxTitleChars       = 200
	maxDescriptionChars = 500
	maxContentChars     = 2000
	minContentChars     = 100

	unscrapedTitle       = "Unable to scrape"
	unscrapedDescription = "Failed to extract information from the provided URL"
)

// contentSelectors are tried in order; the first with enough text wins.
var contentSelectors = []string{"main", "article", ".content", ".post-content", ".entry-content", "body"}

// Scraper drives a fresh headless browser per extraction.
type Scraper struct {
	Timeout   time.Duration
	UserAgent string
	ExecPath  string
}

func New(timeout time.Duration, userAgent, execPath string) *Scraper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scraper{Timeout: timeout, UserAgent: userAgent, ExecPath: execPath}
}

// pageSnapshot is what the in-page script hands back.
type pageSnapshot struct {
	Title         string            `json:"title"`
	OGTitle       string            `json:"ogTitle"`
	MetaTitle     string            `json:"metaTitle"`
	Description   string            `json:"description"`
	OGDescription string            `json:"ogDescription"`
	Sections      map[string]string `json:"sections"`
}

func (s *Scraper) Extract(ctx context.Context, rawURL string) types.ExtractedContext {
	rawURL = strings.TrimSpace(rawURL)
	if err := checkURL(rawURL); err != nil {
		logger.Warnf("scrape skipped url=%q err=%v", rawURL, err)
		return degraded(rawURL)
	}
	start := time.Now()
	snap, err := s.snapshot(ctx, rawURL)
	if err != nil {
		logger.Warnf("scrape failed url=%s elapsed=%s err=%v", rawURL, time.Since(start).Truncate(time.Millisecond), err)
		return degraded(rawURL)
	}
	out := buildContext(rawURL, snap)
	logger.Debugf("scrape ok url=%s title=%q content=%d chars elapsed=%s", rawURL, out.Title, len(out.BodyExcerpt), time.Since(start).Truncate(time.Millisecond))
	return out
}

func (s *Scraper) snapshot(ctx context.Context, target string) (snap pageSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chromedp panic: %v", r)
		}
	}()
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if s.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.UserAgent))
	}
	if s.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(s.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	timeoutCtx, cancel := context.WithTimeout(browserCtx, s.Timeout)
	defer cancel()

	err = chromedp.Run(timeoutCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(snapshotScript(), &snap),
	)
	return snap, err
}

func snapshotScript() string {
	quoted := make([]string, len(contentSelectors))
	for i, sel := range contentSelectors {
		quoted[i] = fmt.Sprintf("%q", sel)
	}
	return `(() => {
  const meta = (sel) => { const el = document.querySelector(sel); return el ? (el.getAttribute('content') || '') : ''; };
  const sections = {};
  for (const sel of [` + strings.Join(quoted, ",") + `]) {
    const el = document.querySelector(sel);
    if (el) sections[sel] = (el.innerText || el.textContent || '').trim();
  }
  return {
    title: (document.title || '').trim(),
    ogTitle: meta('meta[property="og:title"]'),
    metaTitle: meta('meta[name="title"]'),
    description: meta('meta[name="description"]'),
    ogDescription: meta('meta[property="og:description"]'),
    sections: sections,
  };
})()`
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL protocol %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func buildContext(rawURL string, snap pageSnapshot) types.ExtractedContext {
	title := firstNonBlank(snap.Title, snap.OGTitle, snap.MetaTitle, "No title found")
	desc := firstNonBlank(snap.Description, snap.OGDescription, "No description found")
	content := pickContent(snap.Sections)
	if content == "" {
		content = "Unable to extract content"
	}
	return types.ExtractedContext{
		Title:       textutil.Clip(title, maxTitleChars),
		Description: textutil.Clip(desc, maxDescriptionChars),
		BodyExcerpt: textutil.Truncate(content, maxContentChars),
		SourceURL:   rawURL,
	}
}

// pickContent walks the selectors in order and keeps the last non-empty text
// seen, stopping at the first that is long enough.
func pickContent(sections map[string]string) string {
	content := ""
	for _, sel := range contentSelectors {
		text, ok := sections[sel]
		if !ok {
			continue
		}
		content = strings.TrimSpace(text)
		if len([]rune(content)) > minContentChars {
			break
		}
	}
	return content
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func degraded(rawURL string) types.ExtractedContext {
	return types.ExtractedContext{
		Title:       unscrapedTitle,
		Description: unscrapedDescription,
		SourceURL:   rawURL,
		Failed:      true,
	}
}
