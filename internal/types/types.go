package types

// DefaultBaseURL is the address of the Obsidian Local REST API when nothing
// else is configured.
const DefaultBaseURL = "http://localhost:27123"

// DefaultGroupName is the only base offered by the settings popup.
const DefaultGroupName = "default"

// UnknownAuthor is shown when no author could be read from the page.
const UnknownAuthor = "Unknown"

// PostRecord is the metadata of one post, captured at click time
type PostRecord struct {
	URL       string `json:"url"`
	Author    string `json:"author,omitempty"`
	Timestamp string `json:"timestamp"` // RFC 3339, when the record was extracted
	PageTitle string `json:"pageTitle"`
	Content   string `json:"content"`

	// PublishedAt is the post's own <time datetime> value, empty when the
	// page did not render one.
	PublishedAt string `json:"publishedAt,omitempty"`
}

// AuthorOrDefault returns the author, or UnknownAuthor when empty.
func (r PostRecord) AuthorOrDefault() string {
	if r.Author == "" {
		return UnknownAuthor
	}
	return r.Author
}

// Configuration is what the storage client needs to talk to the note service
type Configuration struct {
	BaseURL          string `json:"baseUrl"`
	APIKey           string `json:"apiKey,omitempty"`
	DefaultGroupName string `json:"defaultBase"`
}

// WithDefaults fills in the fallbacks for absent fields.
func (c Configuration) WithDefaults() Configuration {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.DefaultGroupName == "" {
		c.DefaultGroupName = DefaultGroupName
	}
	return c
}

// HasAPIKey reports whether credentials are set.
func (c Configuration) HasAPIKey() bool {
	return c.APIKey != ""
}
