package shared

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"Simple", "Hello World", "hello-world"},
		{"Ampersand", "Drum & Bass", "drum-and-bass"},
		{"Punctuation", "What's Going On?", "whats-going-on"},
		{"Multiple Spaces", "The   Dark  Side", "the-dark-side"},
		{"Leading And Trailing", " (Deluxe) ", "deluxe"},
		{"Unicode Stripped", "Sigur Rós", "sigur-rs"},
		{"Already Slug", "ok-computer", "ok-computer"},
		{"Empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Slugify(tc.input); got != tc.want {
				t.Errorf("Slugify(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
