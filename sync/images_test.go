package sync

import "testing"

func Test_ResolveImageURL(t *testing.T) {

	cases := []struct {
		endpoint string
		relPath  string
		want     string
	}{
		{"https://example.com", "transactions/a.jpg", "https://example.com/storage/transactions/a.jpg"},
		{"https://example.com/", "transactions/a.jpg", "https://example.com/storage/transactions/a.jpg"},
	}
	for _, c := range cases {
		if got := ResolveImageURL(c.endpoint, c.relPath); got != c.want {
			t.Errorf("ResolveImageURL(%q, %q) got %q want %q", c.endpoint, c.relPath, got, c.want)
		}
	}
}

func Test_ResizedImagePath(t *testing.T) {

	cases := []struct {
		relPath       string
		width, height int
		want          string
	}{
		{"products/coffee.jpg", 100, 100, "products/manipulations/coffee-resize-100x100.jpg"},
		{"products/coffee.jpg", 100, 0, "products/manipulations/coffee-resize-100x.jpg"},
		// paths without a folder or extension are left untouched.
		{"coffee.jpg", 100, 100, "coffee.jpg"},
		{"products/coffee", 100, 100, "products/coffee"},
	}
	for _, c := range cases {
		if got := ResizedImagePath(c.relPath, c.width, c.height); got != c.want {
			t.Errorf("ResizedImagePath(%q, %d, %d) got %q want %q",
				c.relPath, c.width, c.height, got, c.want)
		}
	}
}
