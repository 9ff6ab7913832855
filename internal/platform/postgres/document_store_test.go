//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/docflow/internal/domain"
	"github.com/phrazzld/docflow/internal/platform/postgres"
	"github.com/phrazzld/docflow/internal/store"
	"github.com/phrazzld/docflow/internal/testdb"
)

func newDoc(t *testing.T, name, storageID string, category int64) *domain.Document {
	t.Helper()

	doc, err := domain.NewDocument(name, domain.DocxContentType, 42, storageID, category)
	require.NoError(t, err)
	return doc
}

func TestDocumentStoreCRUD(t *testing.T) {
	t.Parallel()

	db := testdb.GetTestDBWithT(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		s := postgres.NewDocumentStore(tx, nil)

		a := newDoc(t, "a.docx", "obj-a.docx", 7)
		b := newDoc(t, "b.pdf", "obj-b.pdf", 0)
		require.NoError(t, s.Create(ctx, a))
		require.NoError(t, s.Create(ctx, b))
		assert.Positive(t, a.ID)
		assert.Greater(t, b.ID, a.ID)

		got, err := s.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "a.docx", got.FileName)
		assert.Equal(t, domain.FileTypeDocx, got.FileType)
		assert.Equal(t, int64(7), got.CategoryID)
		assert.False(t, got.Embedded)

		all, err := s.List(ctx, store.DocumentFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		filtered, err := s.List(ctx, store.DocumentFilter{CategoryID: 7})
		require.NoError(t, err)
		require.Len(t, filtered, 1)
		assert.Equal(t, a.ID, filtered[0].ID)

		require.NoError(t, s.MarkEmbedded(ctx, b.ID))
		got, err = s.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, got.Embedded)

		require.NoError(t, s.Delete(ctx, a.ID))
		_, err = s.GetByID(ctx, a.ID)
		assert.ErrorIs(t, err, store.ErrDocumentNotFound)
		assert.ErrorIs(t, s.Delete(ctx, a.ID), store.ErrDocumentNotFound)
		assert.ErrorIs(t, s.MarkEmbedded(ctx, a.ID), store.ErrDocumentNotFound)
	})
}

func TestDocumentStoreDuplicateStorageID(t *testing.T) {
	t.Parallel()

	db := testdb.GetTestDBWithT(t)

	testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
		ctx := context.Background()
		s := postgres.NewDocumentStore(tx, nil)

		require.NoError(t, s.Create(ctx, newDoc(t, "a.docx", "dup-object", 0)))
		err := s.Create(ctx, newDoc(t, "b.docx", "dup-object", 0))
		assert.ErrorIs(t, err, store.ErrDuplicate)
	})
}

func TestDocumentStoreRejectsInvalid(t *testing.T) {
	t.Parallel()

	db := testdb.GetTestDBWithT(t)
	s := postgres.NewDocumentStore(db, nil)

	err := s.Create(context.Background(), &domain.Document{StorageID: "x"})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
	assert.ErrorIs(t, err, domain.ErrEmptyFileName)
}
