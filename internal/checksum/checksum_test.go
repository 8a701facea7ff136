package checksum

import "testing"

func TestSum(t *testing.T) {
	// sha256("")
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %q", got)
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("different content, same checksum")
	}
}

func TestFromETag(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{`"abc"`, "abc"},
		{"abc", "abc"},
		{` W/"abc" `, "abc"},
		{"*", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FromETag(tt.header); got != tt.want {
			t.Errorf("FromETag(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
	if got := FromETag(ETag("abc")); got != "abc" {
		t.Errorf("round trip = %q", got)
	}
}
