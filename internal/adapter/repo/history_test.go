package repo

import "testing"

func TestHistoryTitle(t *testing.T) {
	cases := []struct {
		source string
		want   string
	}{
		{"https://cdn.example.com/uploads/gold-ring_01.png", "Gold Ring 01"},
		{"https://cdn.example.com/a/b/diamond%20necklace.jpg", "Diamond Necklace"},
		{"silver-bracelet.webp", "Silver Bracelet"},
		{"data:image/png;base64,iVBORw0KGgo=", "Optimized Image"},
		{"", "Optimized Image"},
		{"https://cdn.example.com/", "Optimized Image"},
	}
	for _, tc := range cases {
		if got := HistoryTitle(tc.source); got != tc.want {
			t.Fatalf("HistoryTitle(%q) = %q, want %q", tc.source, got, tc.want)
		}
	}
}
