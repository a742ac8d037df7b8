package util

import (
	"testing"

	"estimatesync/internal"
)

func TestSniffKind(t *testing.T) {
	cases := []struct {
		name    string
		content []byte
		want    internal.DocumentKind
	}{
		{name: "pdf", content: []byte("%PDF-1.7\n%\xe2\xe3"), want: internal.KindPDF},
		{name: "pdf after bom", content: []byte("\uFEFF%PDF-1.4"), want: internal.KindPDF},
		{name: "xlsx zip", content: []byte("PK\x03\x04\x14\x00"), want: internal.KindXLSX},
		{name: "png", content: []byte("\x89PNG\r\n\x1a\n...."), want: internal.KindImage},
		{name: "jpeg", content: []byte{0xFF, 0xD8, 0xFF, 0xE0}, want: internal.KindImage},
		{name: "tiff", content: []byte("II*\x00...."), want: internal.KindImage},
		{name: "html", content: []byte("<html><body><table></table></body></html>"), want: internal.KindHTML},
		{name: "text", content: []byte("Bill To: Jordan Blake"), want: internal.KindText},
		{name: "binary", content: []byte{0x00, 0xff, 0xfe}, want: internal.KindUnknown},
		{name: "empty", content: nil, want: internal.KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SniffKind(tc.content); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestKindFromName(t *testing.T) {
	if got := KindFromName("Estimate.PDF", ""); got != internal.KindPDF {
		t.Fatalf("got %v", got)
	}
	if got := KindFromName("export", "application/vnd.google-apps.document"); got != internal.KindHTML {
		t.Fatalf("got %v", got)
	}
	if got := KindFromName("scan.tiff", ""); got != internal.KindImage {
		t.Fatalf("got %v", got)
	}
	if got := KindFromName("notes.doc", ""); got != internal.KindUnknown {
		t.Fatalf("got %v", got)
	}
}
