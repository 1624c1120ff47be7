package artifactory

import "testing"

func testClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	c, err := New(baseURL, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestPathNavigation(t *testing.T) {
	t.Parallel()
	c := testClient(t, "https://repo.example.com/artifactory")

	p, err := c.Path("libs-release-local", "/com/acme//app.jar")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if p.Repository() != "libs-release-local" {
		t.Fatalf("unexpected repository %q", p.Repository())
	}
	if p.RelativePath() != "com/acme/app.jar" {
		t.Fatalf("unexpected relative path %q", p.RelativePath())
	}
	if p.Name() != "app.jar" {
		t.Fatalf("unexpected name %q", p.Name())
	}
	if got, want := p.URI(), "https://repo.example.com/artifactory/libs-release-local/com/acme/app.jar"; got != want {
		t.Fatalf("expected URI %q, got %q", want, got)
	}

	parent := p.Parent()
	if parent.RelativePath() != "com/acme" {
		t.Fatalf("unexpected parent %q", parent.RelativePath())
	}

	root, err := c.Path("libs-release-local", "")
	if err != nil {
		t.Fatalf("root path: %v", err)
	}
	if root.Name() != "libs-release-local" {
		t.Fatalf("unexpected root name %q", root.Name())
	}
	if root.Parent() != root {
		t.Fatal("expected repository root to be its own parent")
	}

	joined, err := root.Joinpath("com/acme", "app.jar")
	if err != nil {
		t.Fatalf("joinpath: %v", err)
	}
	if joined.RelativePath() != "com/acme/app.jar" {
		t.Fatalf("unexpected joined path %q", joined.RelativePath())
	}
	if _, err := root.Joinpath("../escape"); err == nil {
		t.Fatal("expected traversal segment to be rejected")
	}
}

func TestPathRejectsBadRepository(t *testing.T) {
	t.Parallel()
	c := testClient(t, "https://repo.example.com")
	if _, err := c.Path("bad/repo", ""); err == nil {
		t.Fatal("expected repository with slash to be rejected")
	}
	if _, err := c.Path("", "some/path"); err == nil {
		t.Fatal("expected empty repository to be rejected")
	}
}

func TestContentURLEscapesSegments(t *testing.T) {
	t.Parallel()
	c := testClient(t, "https://repo.example.com/artifactory")
	p, err := c.Path("generic-local", "release notes/v1.0 final.txt")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	want := "https://repo.example.com/artifactory/generic-local/release%20notes/v1.0%20final.txt"
	if got := p.URI(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestAPIRootSaaSLayout(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		base string
		saas bool
		want string
	}{
		{
			name: "self-hosted uses full base",
			base: "https://repo.example.com/artifactory",
			saas: false,
			want: "https://repo.example.com/artifactory/api/system/ping",
		},
		{
			name: "saas pins to platform context",
			base: "https://acme.jfrog.io/artifactory/extra/nesting",
			saas: true,
			want: "https://acme.jfrog.io/artifactory/api/system/ping",
		},
		{
			name: "saas with plain context unchanged",
			base: "https://acme.jfrog.io/artifactory",
			saas: true,
			want: "https://acme.jfrog.io/artifactory/api/system/ping",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			c := testClient(t, tc.base, WithSaaSLayout(tc.saas))
			if got := c.apiURL("system", "ping"); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestMatchGlob(t *testing.T) {
	t.Parallel()
	cases := []struct {
		pattern string
		rel     string
		want    bool
	}{
		{"*.jar", "app.jar", true},
		{"*.jar", "com/acme/app.jar", false},
		{"*/*.jar", "acme/app.jar", true},
		{"**/*.jar", "app.jar", true},
		{"**/*.jar", "com/acme/app.jar", true},
		{"**/*.jar", "com/acme/app.pom", false},
		{"com/**", "com/acme/app.jar", true},
		{"com/**", "org/acme/app.jar", false},
		{"com/**/app.jar", "com/app.jar", true},
		{"com/**/app.jar", "com/a/b/c/app.jar", true},
		{"com/*e/app.?ar", "com/acme/app.jar", true},
		{"**", "anything/at/all", true},
		{"exact/path.txt", "exact/path.txt", true},
		{"exact/path.txt", "exact/other.txt", false},
	}
	for _, tc := range cases {
		got, err := matchGlob(tc.pattern, tc.rel)
		if err != nil {
			t.Fatalf("match %q against %q: %v", tc.pattern, tc.rel, err)
		}
		if got != tc.want {
			t.Fatalf("match %q against %q: expected %v, got %v", tc.pattern, tc.rel, tc.want, got)
		}
	}
	if _, err := matchGlob("[unterminated", "x"); err == nil {
		t.Fatal("expected malformed pattern to error")
	}
}

func TestPathIteratorDrains(t *testing.T) {
	t.Parallel()
	c := testClient(t, "https://repo.example.com")
	a, _ := c.Path("repo", "a")
	b, _ := c.Path("repo", "b")
	it := &PathIterator{items: []*Path{a, b}}

	first, ok := it.Next()
	if !ok || first.(*Path).RelativePath() != "a" {
		t.Fatalf("unexpected first item %v ok=%v", first, ok)
	}
	second, ok := it.Next()
	if !ok || second.(*Path).RelativePath() != "b" {
		t.Fatalf("unexpected second item %v ok=%v", second, ok)
	}
	if _, ok := it.Next(); ok {
		t.Fatal("expected iterator to be exhausted")
	}
	if _, ok := it.Next(); ok {
		t.Fatal("expected exhausted iterator to stay exhausted")
	}
}
