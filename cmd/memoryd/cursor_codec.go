package main

import (
	"context"
	"fmt"
	"strconv"

	"memoryd/internal/cursor"
	"memoryd/internal/handler"
	"memoryd/internal/store"
)

// issuerCodec adapts *cursor.Issuer into handler.CursorCodec. The repo layer
// only supports offset-based listing, not true keyset pagination, so the
// offset to resume from is encoded directly as the cursor's opaque LastID
// field rather than a last-seen entry identity.
type issuerCodec struct {
	issuer *cursor.Issuer
}

func newCursorCodec(issuer *cursor.Issuer) handler.CursorCodec {
	return &issuerCodec{issuer: issuer}
}

// queryHashFor binds a cursor to the exact kind+scope it was issued for, so
// a cursor minted for one listing can't be replayed to resume another.
func queryHashFor(kind string, scope store.Scope) string {
	return cursor.HashQuery(kind, string(scope.Type), scope.ID)
}

func (c *issuerCodec) ResolveOffset(ctx context.Context, kind string, scope store.Scope, token string) (int, error) {
	claims, err := c.issuer.Verify(token, queryHashFor(kind, scope))
	if err != nil {
		return 0, err
	}
	offset, err := strconv.Atoi(claims.LastID)
	if err != nil {
		return 0, fmt.Errorf("cursor: malformed resume offset %q", claims.LastID)
	}
	return offset, nil
}

func (c *issuerCodec) Issue(ctx context.Context, kind string, scope store.Scope, offset int) (string, error) {
	return c.issuer.Issue(strconv.Itoa(offset), 0, queryHashFor(kind, scope))
}
