// Package checkout turns a finished design into the cart line item handed to
// the order system. The serialized scene travels as a line-item property
// together with a signed token so the order side can detect tampering.
package checkout

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/inamate/stickers/internal/scene"
	"github.com/inamate/stickers/internal/serialize"
	"github.com/inamate/stickers/internal/typeid"
)

// Line-item property keys. Keys with a leading underscore are hidden from
// the shopper by most storefront themes.
const (
	PropertyDesign   = "_sticker_design"
	PropertyToken    = "_sticker_token"
	PropertyStickers = "Stickers"
)

var (
	ErrEmptyDesign  = errors.New("design has no stickers")
	ErrNoVariant    = errors.New("product variant is required")
	ErrInvalidToken = errors.New("invalid checkout token")
	ErrTampered     = errors.New("design does not match checkout token")
)

// Product identifies what the design is printed on.
type Product struct {
	ID        string `json:"productId"`
	Title     string `json:"productTitle,omitempty"`
	Image     string `json:"productImage,omitempty"`
	VariantID string `json:"variantId"`
}

// LineItem is the cart entry for one configured product.
type LineItem struct {
	VariantID  string            `json:"variantId"`
	Quantity   int               `json:"quantity"`
	Properties map[string]string `json:"properties"`
}

// Claims is what a verified token vouches for.
type Claims struct {
	CheckoutID string    `json:"checkoutId"`
	SessionID  string    `json:"sessionId"`
	ProductID  string    `json:"productId"`
	Digest     string    `json:"digest"`
	IssuedAt   time.Time `json:"issuedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(secret string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, errors.New("checkout secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// LineItem serializes s and signs it for product.
func (s *Service) LineItem(sessionID string, product Product, sc *scene.Scene) (*LineItem, error) {
	if product.VariantID == "" {
		return nil, ErrNoVariant
	}
	if sc.Len() == 0 {
		return nil, ErrEmptyDesign
	}

	design, err := serialize.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("serialize design: %w", err)
	}

	token, err := s.issueToken(sessionID, product.ID, digest(design))
	if err != nil {
		return nil, err
	}

	return &LineItem{
		VariantID: product.VariantID,
		Quantity:  1,
		Properties: map[string]string{
			PropertyDesign:   string(design),
			PropertyToken:    token,
			PropertyStickers: stickerCount(sc.Len()),
		},
	}, nil
}

// Verify checks the token's signature and expiry and that it was issued for
// the design carried by the same line item.
func (s *Service) Verify(item LineItem) (*Claims, error) {
	design, ok := item.Properties[PropertyDesign]
	if !ok {
		return nil, fmt.Errorf("%w: missing design", ErrInvalidToken)
	}

	token, err := jwt.Parse(item.Properties[PropertyToken], func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	out := &Claims{
		CheckoutID: stringClaim(claims, "jti"),
		SessionID:  stringClaim(claims, "sub"),
		ProductID:  stringClaim(claims, "product"),
		Digest:     stringClaim(claims, "digest"),
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}

	if out.Digest != digest([]byte(design)) {
		return nil, ErrTampered
	}
	return out, nil
}

func (s *Service) issueToken(sessionID, productID, sum string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"jti":     typeid.NewCheckoutID(),
		"sub":     sessionID,
		"product": productID,
		"digest":  sum,
		"iat":     now.Unix(),
		"exp":     now.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}

func stickerCount(n int) string {
	if n == 1 {
		return "1 sticker"
	}
	return fmt.Sprintf("%d stickers", n)
}
