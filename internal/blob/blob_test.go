package blob

import (
	"context"
	"testing"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		source, filename, want string
	}{
		{"s1", "Lịch sử 10.pdf", "sources/s1/Lịch_sử_10.pdf"},
		{"s1", "../../etc/passwd", "sources/s1/passwd"},
		{"s1", `C:\docs\a?b.pdf`, "sources/s1/ab.pdf"},
		{"s1", "", "sources/s1/upload"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.source, tt.filename); got != tt.want {
			t.Errorf("ObjectKey(%q): expected %q, got %q", tt.filename, tt.want, got)
		}
	}
}

func TestDiscard(t *testing.T) {
	url, err := Discard{}.Put(context.Background(), "k", []byte("x"), "text/plain")
	if err != nil || url != "" {
		t.Errorf("expected empty url and nil error, got %q %v", url, err)
	}
}

func TestNewS3_Validation(t *testing.T) {
	if _, err := NewS3(context.Background(), S3Config{Region: "ap-southeast-1"}); err == nil {
		t.Error("expected error without bucket")
	}
	if _, err := NewS3(context.Background(), S3Config{Bucket: "b"}); err == nil {
		t.Error("expected error without region")
	}
}

func TestS3URL(t *testing.T) {
	c := &S3{bucket: "vihis", region: "ap-southeast-1"}
	if got := c.URL("sources/s1/a.pdf"); got != "https://vihis.s3.ap-southeast-1.amazonaws.com/sources/s1/a.pdf" {
		t.Errorf("unexpected url %q", got)
	}
}
