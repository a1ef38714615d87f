package slug

import "testing"

func TestMake(t *testing.T) {
	cases := []struct {
		in, fallback, want string
	}{
		{"Hello World", FallbackPoem, "hello-world"},
		{"??????", FallbackAuthor, "author"},
		{"Бахор", FallbackPoem, "poem"},
		{"  Émile  Zola ", FallbackAuthor, "emile-zola"},
		{"Rumi -- Masnavi, Book 1", FallbackPoem, "rumi-masnavi-book-1"},
		{"", FallbackPoem, "poem"},
	}
	for _, tc := range cases {
		if got := Make(tc.in, tc.fallback); got != tc.want {
			t.Fatalf("Make(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWithID(t *testing.T) {
	if got := WithID(5, "Title", FallbackPoem); got != "5-title" {
		t.Fatalf("WithID = %q", got)
	}
}

func TestParseID(t *testing.T) {
	for in, want := range map[string]int64{"12": 12, "12-bahor": 12, "poem:12": 12, " 7-author ": 7} {
		got, err := ParseID(in)
		if err != nil || got != want {
			t.Fatalf("ParseID(%q) = %d, %v", in, got, err)
		}
	}
	for _, bad := range []string{"", "abc", "-3", "0-x"} {
		if _, err := ParseID(bad); err == nil {
			t.Fatalf("ParseID(%q) should fail", bad)
		}
	}
}
