package urlmodel

import "testing"

func TestExtractLocalPathWithoutArgs(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input string
		want  string
	}{
		{input: "okay.com", want: ""},
		{input: "okay.com/", want: "/"},
		{input: "okay.com/a/b.html?x=1", want: "/a/b.html"},
		{input: "okay.com/a#frag?not-a-query", want: "/a"},
		{input: "https://okay.com/robots.txt", want: "/robots.txt"},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()

			got, err := ExtractLocalPathWithoutArgs(tc.input)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("ExtractLocalPathWithoutArgs(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestMergeURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		domain string
		local  string
		want   string
	}{
		{name: "empty local", domain: "wiki.org", local: "", want: "wiki.org"},
		{name: "no slashes", domain: "wiki.org", local: "a/b", want: "wiki.org/a/b"},
		{name: "slash on local", domain: "wiki.org", local: "/a", want: "wiki.org/a"},
		{name: "slash on domain", domain: "wiki.org/", local: "a", want: "wiki.org/a"},
		{name: "slash on both", domain: "wiki.org/", local: "/a", want: "wiki.org/a"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := MergeURL(tc.domain, tc.local); got != tc.want {
				t.Errorf("MergeURL(%q, %q) = %q, want %q", tc.domain, tc.local, got, tc.want)
			}
		})
	}
}

func TestMergeRefURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		base string
		ref  string
		want string
	}{
		{base: "wiki.org/page", ref: "#top", want: "wiki.org/page#top"},
		{base: "wiki.org/page/", ref: "#top", want: "wiki.org/page#top"},
		{base: "wiki.org/page/", ref: "/#top", want: "wiki.org/page#top"},
	}

	for _, tc := range testCases {
		if got := MergeRefURL(tc.base, tc.ref); got != tc.want {
			t.Errorf("MergeRefURL(%q, %q) = %q, want %q", tc.base, tc.ref, got, tc.want)
		}
	}
}

func TestStrongStrip(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"wiki.org/a/?q=1":  "wiki.org/a",
		"wiki.org/a#frag":  "wiki.org/a",
		"wiki.org/":        "wiki.org",
		"wiki.org/a/b.pdf": "wiki.org/a/b.pdf",
	}
	for in, want := range testCases {
		if got := StrongStrip(in); got != want {
			t.Errorf("StrongStrip(%q) = %q, want %q", in, got, want)
		}
	}
}
