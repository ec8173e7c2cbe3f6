package types

import "testing"

func TestConfigurationWithDefaults(t *testing.T) {
	got := Configuration{}.WithDefaults()
	if got.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL: got %q, want %q", got.BaseURL, DefaultBaseURL)
	}
	if got.DefaultGroupName != DefaultGroupName {
		t.Errorf("DefaultGroupName: got %q, want %q", got.DefaultGroupName, DefaultGroupName)
	}
	if got.HasAPIKey() {
		t.Error("HasAPIKey: got true for empty key")
	}
}

func TestConfigurationWithDefaults_KeepsValues(t *testing.T) {
	in := Configuration{BaseURL: "http://127.0.0.1:9999", APIKey: "k", DefaultGroupName: "music"}
	got := in.WithDefaults()
	if got != in {
		t.Errorf("WithDefaults changed set fields: got %+v, want %+v", got, in)
	}
}

func TestPostRecordAuthorOrDefault(t *testing.T) {
	if got := (PostRecord{}).AuthorOrDefault(); got != UnknownAuthor {
		t.Errorf("empty author: got %q, want %q", got, UnknownAuthor)
	}
	if got := (PostRecord{Author: "Jane"}).AuthorOrDefault(); got != "Jane" {
		t.Errorf("author: got %q, want %q", got, "Jane")
	}
}
