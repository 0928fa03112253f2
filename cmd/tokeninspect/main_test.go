package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurole/shorttoken/internal/di/providers"
	"github.com/nurole/shorttoken/internal/domain"
	"github.com/nurole/shorttoken/internal/store"
)

func TestInspect_ConsistentLinks(t *testing.T) {
	db, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	links := providers.BadgerLinks(db)
	ctx := context.Background()
	for id, tok := range map[string]string{"link-1": "Ab3F", "link-2": "zz9", "link-3": ""} {
		l := &domain.Link{Meta: domain.Meta{ID: id}, Token: tok, TargetURL: "https://example.com"}
		l.InitTimestamps()
		require.NoError(t, links.Insert(ctx, l))
	}

	r, err := inspect(db, providers.LinkPrefix, domain.LinkToken, domain.LinkID)
	require.NoError(t, err)

	assert.Equal(t, 3, r.Records)
	assert.Equal(t, map[string]string{"Ab3F": "link-1", "zz9": "link-2"}, r.Tokens)
	assert.Equal(t, map[int]int{4: 1, 3: 1}, r.ByLength)
	assert.True(t, r.consistent())

	var out bytes.Buffer
	r.print(&out, true)
	assert.Contains(t, out.String(), "=== link (token) ===")
	assert.Contains(t, out.String(), "Ab3F  link-1")
	assert.Contains(t, out.String(), "Index consistent")
}

func TestInspect_InvitesIgnoreEmailIndex(t *testing.T) {
	db, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	invites := providers.BadgerInvites(db)
	inv := &domain.Invite{Meta: domain.Meta{ID: "invite-1"}, Code: "123456", Email: "a@example.com", Name: "A"}
	inv.InitTimestamps()
	require.NoError(t, invites.Insert(context.Background(), inv))

	r, err := inspect(db, providers.InvitePrefix, domain.InviteCode, domain.InviteID)
	require.NoError(t, err)

	assert.Equal(t, 1, r.Records)
	assert.Equal(t, map[string]string{"123456": "invite-1"}, r.Tokens)
	assert.True(t, r.consistent())
}

func TestReport_Issues(t *testing.T) {
	r := &report{
		Prefix:    "link:",
		Field:     "token",
		Tokens:    map[string]string{},
		ByLength:  map[int]int{},
		Unindexed: []string{"Ab3F (link-1)"},
		Orphans:   []string{"Qq7x -> link-9"},
	}
	assert.False(t, r.consistent())

	var out bytes.Buffer
	r.print(&out, false)
	assert.Contains(t, out.String(), "Unindexed: 1")
	assert.Contains(t, out.String(), "Orphaned index entries: 1")
	assert.NotContains(t, out.String(), "Index consistent")
}
