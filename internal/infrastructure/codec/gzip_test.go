package codec

import (
	"errors"
	"strings"
	"testing"
)

func TestGzip_EmptyInput(t *testing.T) {
	g := NewGzip()

	out, err := g.Compress("")
	if err != nil || out != "" {
		t.Fatalf("Compress(\"\") = %q, %v; want empty, nil", out, err)
	}

	out, err = g.Decompress("")
	if err != nil || out != "" {
		t.Fatalf("Decompress(\"\") = %q, %v; want empty, nil", out, err)
	}
}

func TestGzip_RoundTrip(t *testing.T) {
	g := NewGzip()

	cases := []string{
		"a",
		`{"theme":"dark","count":3}`,
		"héllo wörld — 你好，世界 🚀",
		strings.Repeat("rechart ", 5000),
		"\x00\x01 binary-ish \n\t",
	}

	for _, in := range cases {
		enc, err := g.Compress(in)
		if err != nil {
			t.Fatalf("Compress(%q): %v", in, err)
		}
		if enc == "" {
			t.Fatalf("Compress(%q) returned empty output", in)
		}
		dec, err := g.Decompress(enc)
		if err != nil {
			t.Fatalf("Decompress: %v", err)
		}
		if dec != in {
			t.Fatalf("round trip mismatch: got %q, want %q", dec, in)
		}
	}
}

func TestGzip_OutputIsBase64Text(t *testing.T) {
	g := NewGzip()
	enc, err := g.Compress(`{"a":1}`)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	for _, r := range enc {
		if !strings.ContainsRune("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/=", r) {
			t.Fatalf("unexpected character %q in encoded output", r)
		}
	}
}

func TestGzip_DecompressGarbage(t *testing.T) {
	g := NewGzip()

	for _, in := range []string{"not base64 at all!", "aGVsbG8="} {
		if _, err := g.Decompress(in); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("Decompress(%q): expected ErrCorrupt, got %v", in, err)
		}
	}
}
