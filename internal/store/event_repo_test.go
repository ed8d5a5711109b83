package store

import (
	"testing"

	"github.com/Thedurancode/aitickets/internal/models"
)

func TestMediaKind(t *testing.T) {
	tests := []struct {
		in   string
		want models.MediaKind
	}{
		{"video", models.KindVideo},
		{" Video ", models.KindVideo},
		{"photo", models.KindPhoto},
		{"", models.KindPhoto},
		{"gif", models.KindPhoto},
	}
	for _, tt := range tests {
		if got := mediaKind(tt.in); got != tt.want {
			t.Errorf("mediaKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewPgxPoolRequiresURL(t *testing.T) {
	if _, err := NewPgxPool(t.Context(), ""); err == nil {
		t.Fatal("expected an error for an empty url")
	}
}
