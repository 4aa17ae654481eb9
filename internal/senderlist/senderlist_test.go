package senderlist

import (
	"context"
	"testing"

	"github.com/encryptgate/threat-engine/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestList_AddRemoveContains(t *testing.T) {
	l := New(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, l.Add(ctx, &core.SenderListEntry{
		Email:  "Spammer@Evil.Example",
		Reason: "repeated phishing",
		Actor:  "analyst@corp.example",
	}))

	// Matching is case-insensitive on the normalized address
	ok, err := l.Contains(ctx, "spammer@evil.example")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Contains(ctx, "SPAMMER@EVIL.EXAMPLE")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Contains(ctx, "other@evil.example")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Remove(ctx, "spammer@evil.example"))
	ok, err = l.Contains(ctx, "spammer@evil.example")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestList_DomainEntryMatchesWholeDomain(t *testing.T) {
	l := New(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, l.Add(ctx, &core.SenderListEntry{Email: "@evil.example", Reason: "bad domain"}))

	ok, err := l.Contains(ctx, "anyone@evil.example")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Contains(ctx, "anyone@good.example")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestList_AddRejectsEmptyAddress(t *testing.T) {
	l := New(zap.NewNop())
	err := l.Add(context.Background(), &core.SenderListEntry{Email: "   "})
	assert.ErrorIs(t, err, core.ErrInvalidEmail)
}

func TestList_RemoveUnknown(t *testing.T) {
	l := New(zap.NewNop())
	err := l.Remove(context.Background(), "missing@example.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestList_EntriesSnapshot(t *testing.T) {
	l := NewSeeded([]string{"a@b.example", "C@D.example", ""}, "trusted partner", zap.NewNop())

	entries, err := l.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	seen := make(map[string]string)
	for _, e := range entries {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, "config", e.Actor)
		seen[e.Email] = e.Reason
	}
	assert.Equal(t, "trusted partner", seen["a@b.example"])
	assert.Equal(t, "trusted partner", seen["c@d.example"])

	// Mutating the snapshot leaves the list untouched
	entries[0].Email = "mutated@example.com"
	ok, err := l.Contains(context.Background(), "mutated@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}
