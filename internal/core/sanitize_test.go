package core

import "testing"

func TestSanitizeText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"hello", "hello"},
		{"  padded  ", "padded"},
		{"<b>bold</b>", "&lt;b&gt;bold&lt;/b&gt;"},
		{`say "hi"`, "say &quot;hi&quot;"},
		{"it's `code` & more", "it&#39;s &#96;code&#96; &amp; more"},
		{"", ""},
		{"   ", ""},
	}

	for _, tc := range cases {
		if got := SanitizeText(tc.in); got != tc.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
