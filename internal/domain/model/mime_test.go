package model

import "testing"

func TestMimeTypeForName(t *testing.T) {
	cases := map[string]string{
		"a.png":           "image/png",
		"A.JPG":           "image/jpeg",
		"b.jpeg":          "image/jpeg",
		"c.webp":          "image/webp",
		"d.gif":           "image/gif",
		"noext":           "image/png",
		"x.jpg?sig=1":     "image/jpeg",
		"archive.tar.bmp": "image/png",
	}
	for in, want := range cases {
		if got := MimeTypeForName(in); got != want {
			t.Errorf("MimeTypeForName(%q)=%q want %q", in, got, want)
		}
	}
}

func TestImageExtForURL(t *testing.T) {
	cases := map[string]string{
		"https://x/y/z.webp?token=1":  ".webp",
		"https://x/y/z":               ".png",
		"https://x/y/z.JPG":           ".jpg",
		"data:image/jpeg;base64,AAAA": ".jpg",
		"data:image/png;base64,AAAA":  ".png",
		"https://x/file.pdf":          ".png",
	}
	for in, want := range cases {
		if got := ImageExtForURL(in); got != want {
			t.Errorf("ImageExtForURL(%q)=%q want %q", in, got, want)
		}
	}
}
