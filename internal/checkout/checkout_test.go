package checkout

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/inamate/stickers/internal/geometry"
	"github.com/inamate/stickers/internal/scene"
	"github.com/inamate/stickers/internal/serialize"
)

var product = Product{ID: "prod-1", Title: "Tee", VariantID: "var-42"}

func newService(t *testing.T, now time.Time) *Service {
	t.Helper()
	svc, err := NewService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	svc.now = func() time.Time { return now }
	return svc
}

func newScene(t *testing.T, n int) *scene.Scene {
	t.Helper()
	s, err := scene.New(geometry.Size{Width: 400, Height: 500}, scene.Options{})
	if err != nil {
		t.Fatalf("scene.New failed: %v", err)
	}
	for i := 0; i < n; i++ {
		_, err := s.Add(scene.StickerSpec{
			ImageRef: "img.png",
			Position: geometry.Point{X: 200, Y: 250},
			Size:     geometry.Size{Width: 100, Height: 100},
		})
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}
	return s
}

func TestLineItemVerifies(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newService(t, now)
	sc := newScene(t, 2)

	item, err := svc.LineItem("sess_1", product, sc)
	if err != nil {
		t.Fatalf("LineItem failed: %v", err)
	}
	if item.VariantID != "var-42" || item.Quantity != 1 {
		t.Errorf("item = %+v", item)
	}
	if item.Properties[PropertyStickers] != "2 stickers" {
		t.Errorf("count = %q", item.Properties[PropertyStickers])
	}
	if _, err := serialize.Deserialize([]byte(item.Properties[PropertyDesign]), scene.Options{}); err != nil {
		t.Errorf("design does not deserialize: %v", err)
	}

	claims, err := svc.Verify(*item)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.SessionID != "sess_1" || claims.ProductID != "prod-1" {
		t.Errorf("claims = %+v", claims)
	}
	if !strings.HasPrefix(claims.CheckoutID, "chk_") {
		t.Errorf("checkout id = %q", claims.CheckoutID)
	}
	if !claims.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Errorf("expires = %v", claims.ExpiresAt)
	}
}

func TestVerifyRejectsTamperedDesign(t *testing.T) {
	svc := newService(t, time.Now())
	item, err := svc.LineItem("sess_1", product, newScene(t, 1))
	if err != nil {
		t.Fatal(err)
	}
	item.Properties[PropertyDesign] = strings.Replace(item.Properties[PropertyDesign], `"rotation":0`, `"rotation":45`, 1)

	if _, err := svc.Verify(*item); !errors.Is(err, ErrTampered) {
		t.Errorf("error = %v, want ErrTampered", err)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	now := time.Now()
	svc := newService(t, now)
	item, err := svc.LineItem("sess_1", product, newScene(t, 1))
	if err != nil {
		t.Fatal(err)
	}

	other, _ := NewService("another-secret", time.Hour)
	if _, err := other.Verify(*item); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("wrong secret: error = %v", err)
	}

	later := newService(t, now.Add(2*time.Hour))
	if _, err := later.Verify(*item); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired: error = %v", err)
	}

	delete(item.Properties, PropertyDesign)
	if _, err := svc.Verify(*item); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("missing design: error = %v", err)
	}
}

func TestLineItemRejects(t *testing.T) {
	svc := newService(t, time.Now())
	if _, err := svc.LineItem("sess_1", product, newScene(t, 0)); !errors.Is(err, ErrEmptyDesign) {
		t.Errorf("empty: error = %v", err)
	}
	if _, err := svc.LineItem("sess_1", Product{ID: "p"}, newScene(t, 1)); !errors.Is(err, ErrNoVariant) {
		t.Errorf("no variant: error = %v", err)
	}
	if _, err := NewService("", time.Hour); err == nil {
		t.Error("empty secret accepted")
	}
}
