package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-platform/internal/domain/shared"
)

func TestLocal_PutGetExists(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir(), "https://cdn.example.com/docs/")
	require.NoError(t, err)

	ok, err := store.Exists(ctx, "contract_1.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "contract_1.pdf", []byte("%PDF-1"), "application/pdf"))
	require.NoError(t, store.Put(ctx, "contract_1.pdf", []byte("%PDF-2"), "application/pdf"))

	got, err := store.Get(ctx, "contract_1.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-2"), got)

	ok, err = store.Exists(ctx, "contract_1.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "https://cdn.example.com/docs/contract_1.pdf", store.URL("contract_1.pdf"))

	require.NoError(t, store.Delete(ctx, "contract_1.pdf"))
	require.NoError(t, store.Delete(ctx, "contract_1.pdf"))
	ok, err = store.Exists(ctx, "contract_1.pdf")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, shared.IsInvalidArgument(store.Delete(ctx, "../contract_1.pdf")))
}

func TestLocal_GetMissing(t *testing.T) {
	store, err := NewLocal(t.TempDir(), "")
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "certificate_9.pdf")
	assert.ErrorIs(t, err, shared.ErrBlobNotFound)
	assert.True(t, shared.IsNotFound(err))
	assert.Empty(t, store.URL("certificate_9.pdf"))
}

func TestCleanName_RejectsTraversal(t *testing.T) {
	for _, name := range []string{"", "../etc/passwd", "a/b.pdf", `a\b.pdf`, " "} {
		_, err := cleanName(name)
		assert.Error(t, err, name)
		assert.True(t, shared.IsInvalidArgument(err), name)
	}
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("")

	require.NoError(t, m.Put(ctx, "certificate_3.pdf", []byte("x"), "application/pdf"))
	got, err := m.Get(ctx, "certificate_3.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)
	assert.Equal(t, 1, m.Puts())
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, "memory://documents/certificate_3.pdf", m.URL("certificate_3.pdf"))

	_, err = m.Get(ctx, "missing.pdf")
	assert.ErrorIs(t, err, shared.ErrBlobNotFound)

	require.NoError(t, m.Delete(ctx, "certificate_3.pdf"))
	assert.Equal(t, 0, m.Len())
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), Config{Backend: BackendMemory}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(context.Background(), Config{Backend: BackendLocal, LocalDir: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Local{}, s)

	_, err = Open(context.Background(), Config{Backend: "s3"}, nil)
	assert.Error(t, err)
}
