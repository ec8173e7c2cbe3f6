package page

// X.com DOM selectors
// These are isolated here because X changes their DOM frequently
// Update these when detection or injection breaks

const (
	// Post card marker
	TweetArticle = `article[data-testid="tweet"]`

	// Post content selectors
	TweetText      = `[data-testid="tweetText"]`
	TweetTimestamp = `time`

	// Action bar selectors
	ActionBar      = `[role="group"]`
	BookmarkButton = `[data-testid="bookmark"]`
	ShareButton    = `[data-testid="share"]`
	ReplyButton    = `[data-testid="reply"]`

	// Injected control
	SaveControlClass = "obsidian-save-button"
	SaveControl      = `.` + SaveControlClass
	StatusToastClass = "obsidian-status"
)

// AuthorSelectors are tried in order; the first match wins.
var AuthorSelectors = []string{
	`[data-testid="User-Name"]`,
	`[data-testid="User-Names"]`,
	`a[href*="/"] span[dir="ltr"]`,
	`[role="link"] span[dir="ltr"]`,
}

// DetailSelectors indicate a rendered post on a detail (permalink) page when
// combined with a /status/<id> URL.
var DetailSelectors = []string{
	`[data-testid="tweetDetail"]`,
	`article[role="article"]`,
	`[data-testid="primaryColumn"] article`,
	`main article`,
	`[data-testid="tweet"]`,
}
