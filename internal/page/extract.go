package page

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/tweetsaver/internal/types"
)

// rawRecord is the data read from the DOM via JavaScript
type rawRecord struct {
	URL         string `json:"url"`
	Author      string `json:"author"`
	PageTitle   string `json:"pageTitle"`
	Content     string `json:"content"`
	PublishedAt string `json:"publishedAt"`
}

// extractJS reads the post around permalink, or the page's first post when
// permalink is empty. Format verbs: permalink, JSON author selectors.
const extractJS = `
	(function(permalink, authorSelectors) {
		let scope = document;
		if (permalink) {
			try {
				const path = new URL(permalink).pathname;
				const link = document.querySelector('article a[href="' + CSS.escape(path) + '"]');
				const article = link && link.closest('article');
				if (article) scope = article;
			} catch (e) {}
		}

		let author = '';
		for (const selector of authorSelectors) {
			const el = scope.querySelector(selector);
			if (!el) continue;
			// The display name is the first span of the User-Name block.
			const name = el.querySelector('span');
			author = ((name && name.textContent) || el.textContent || '').trim();
			if (author) break;
		}

		const text = scope.querySelector('[data-testid="tweetText"]');
		const time = scope.querySelector('time');

		return {
			url: permalink || window.location.href,
			author: author,
			pageTitle: document.title,
			content: text ? text.textContent.trim() : '',
			publishedAt: (time && time.getAttribute('datetime')) || ''
		};
	})(%q, %s)
`

// Extract builds a PostRecord from the current DOM. The record's timestamp
// is the extraction time.
func Extract(ctx context.Context, permalink string) (types.PostRecord, error) {
	selectors, err := json.Marshal(AuthorSelectors)
	if err != nil {
		return types.PostRecord{}, err
	}

	var raw rawRecord
	js := fmt.Sprintf(extractJS, permalink, selectors)
	if err := chromedp.Evaluate(js, &raw).Do(ctx); err != nil {
		return types.PostRecord{}, fmt.Errorf("failed to extract post from DOM: %w", err)
	}

	return recordFromRaw(raw, time.Now()), nil
}

func recordFromRaw(raw rawRecord, now time.Time) types.PostRecord {
	author := strings.TrimSpace(raw.Author)
	if author == "" {
		author = types.UnknownAuthor
	}
	return types.PostRecord{
		URL:         raw.URL,
		Author:      author,
		Timestamp:   now.UTC().Format(time.RFC3339),
		PageTitle:   raw.PageTitle,
		Content:     raw.Content,
		PublishedAt: raw.PublishedAt,
	}
}

// statusJS shows a toast in the top right corner. Loading toasts stay until
// replaced; the others fade after three seconds. Format verbs: class,
// message, type.
const statusJS = `
	(function(cls, message, type) {
		const old = document.querySelector('.' + cls);
		if (old) old.remove();

		const colors = { success: '#10b981', error: '#ef4444', loading: '#3b82f6' };
		const status = document.createElement('div');
		status.className = cls;
		status.textContent = message;
		status.style.cssText = 'position:fixed;top:20px;right:20px;padding:12px 16px;border-radius:8px;' +
			'font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Roboto,sans-serif;font-size:14px;' +
			'font-weight:500;z-index:10000;box-shadow:0 4px 12px rgba(0,0,0,0.15);transition:opacity 0.3s ease;' +
			'color:white;background:' + (colors[type] || '#3b82f6') + ';';
		document.body.appendChild(status);

		if (type !== 'loading') {
			setTimeout(() => {
				if (status.parentNode) {
					status.style.opacity = '0';
					setTimeout(() => status.remove(), 300);
				}
			}, 3000);
		}
	})(%q, %q, %q)
`

// Status kinds for ShowStatus.
const (
	StatusLoading = "loading"
	StatusSuccess = "success"
	StatusError   = "error"
)

// ShowStatus displays a transient status message in the page.
func ShowStatus(ctx context.Context, message, kind string) error {
	js := fmt.Sprintf(statusJS, StatusToastClass, message, kind)
	return chromedp.Evaluate(js, nil).Do(ctx)
}

// stylesJS installs the stylesheet for the save control once per document.
const stylesJS = `
	(function(cls) {
		if (document.getElementById('tweetsaver-styles')) return;
		const style = document.createElement('style');
		style.id = 'tweetsaver-styles';
		style.textContent =
			'[data-testid="bookmark"] { display: none !important; }' +
			'.' + cls + ' { display: inline-flex; align-items: center; justify-content: center; position: relative; }' +
			'.' + cls + ':hover { transform: scale(1.05); }' +
			'.' + cls + ':active { transform: scale(0.95); }' +
			'.' + cls + ' * { box-sizing: border-box; }' +
			'@media (prefers-color-scheme: dark) {' +
			'  .' + cls + ' [role="button"] { color: rgb(113, 118, 123) !important; }' +
			'  .' + cls + ':hover [role="button"] { color: rgb(99, 102, 241) !important; background-color: rgba(99, 102, 241, 0.1) !important; }' +
			'}';
		(document.head || document.documentElement).appendChild(style);
	})(%q)
`

// InstallStyles adds the save-control stylesheet to the page.
func InstallStyles(ctx context.Context) error {
	return chromedp.Evaluate(fmt.Sprintf(stylesJS, SaveControlClass), nil).Do(ctx)
}
