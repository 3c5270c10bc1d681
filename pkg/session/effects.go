package session

import (
	"context"

	"github.com/farmcart/farmcart/pkg/dispatch"
)

// PersistToken returns the effect that saves a freshly issued token.
func PersistToken(store TokenStore, token string) dispatch.Effect {
	return dispatch.EffectFunc{
		Label: "persist-token",
		Fn: func(ctx context.Context) error {
			return store.Set(ctx, TokenKey, token)
		},
	}
}

// ForgetToken returns the effect that removes the stored token.
func ForgetToken(store TokenStore) dispatch.Effect {
	return dispatch.EffectFunc{
		Label: "forget-token",
		Fn: func(ctx context.Context) error {
			return store.Delete(ctx, TokenKey)
		},
	}
}

// Current loads and decodes the stored token.
func Current(ctx context.Context, store TokenStore) (string, *Claims, error) {
	tok, err := Source{Store: store}.Token(ctx)
	if err != nil {
		return "", nil, err
	}
	claims, err := ParseClaims(tok)
	if err != nil {
		return "", nil, err
	}
	return tok, claims, nil
}
