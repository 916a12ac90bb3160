package catalog

import "testing"

func TestRefreshVersionCache(t *testing.T) {
	versions := []Version{
		{Tag: "v1.0.0", Status: StatusReady},
		{Tag: "v1.1.0", Status: StatusPending},
		{Tag: "v0.5.0", Status: StatusReady},
		{Tag: "not-a-version", Status: StatusReady},
	}

	cache, changed := RefreshVersionCache("acme/widget", versions, VersionCache{})
	if !changed {
		t.Error("expected default version to change from empty cache")
	}
	if len(cache.Versions) != 2 {
		t.Fatalf("expected 2 ready+valid versions, got %v", cache.Versions)
	}
	if cache.Versions[0] != "v0.5.0" || cache.Versions[1] != "v1.0.0" {
		t.Errorf("expected sorted [v0.5.0 v1.0.0], got %v", cache.Versions)
	}
	if cache.DefaultVersion() != "v1.0.0" {
		t.Errorf("expected default v1.0.0, got %q", cache.DefaultVersion())
	}
}

func TestRefreshVersionCacheNoChange(t *testing.T) {
	previous := VersionCache{LibraryID: "acme/widget", Versions: []string{"v1.0.0"}}
	versions := []Version{
		{Tag: "v1.0.0", Status: StatusReady},
		{Tag: "v0.9.0", Status: StatusReady}, // not the default, shouldn't flip "changed"
	}
	cache, changed := RefreshVersionCache("acme/widget", versions, previous)
	if changed {
		t.Error("default version did not change, but changed=true")
	}
	if len(cache.Versions) != 2 {
		t.Errorf("expected both ready versions retained, got %v", cache.Versions)
	}
}

func TestToIngestBacklog(t *testing.T) {
	tagMap := []TagCommit{
		{Tag: "v1.0.0", Commit: "a"},
		{Tag: "v2.0.0", Commit: "b"},
	}
	cache := VersionCache{Versions: []string{"v1.0.0"}}
	backlog := ToIngestBacklog(tagMap, cache)
	if len(backlog) != 1 || backlog[0] != "v2.0.0" {
		t.Errorf("expected backlog [v2.0.0], got %v", backlog)
	}
}

func TestSPDXAllowlist(t *testing.T) {
	allow := DefaultSPDXAllowlist()
	if !allow.Validate("MIT") {
		t.Error("MIT should be allowed")
	}
	if allow.Validate("Some-Made-Up-License") {
		t.Error("unknown license should not be allowed")
	}
	if allow.Validate("") {
		t.Error("empty license should not be allowed")
	}
}
