package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDocumentService(docs *fakeDocumentStore, blobs *fakeBlobStore) *DocumentService {
	return NewDocumentService(
		DocumentWithDocumentStore(docs),
		DocumentWithStorage(blobs),
	)
}

func TestUploadStoresBlobAndMetadata(t *testing.T) {
	docs := newFakeDocumentStore()
	blobs := newFakeBlobStore()
	svc := newTestDocumentService(docs, blobs)

	doc, err := svc.Upload(context.Background(), UploadDocumentRequest{
		UserID:   "u1",
		FileName: "resume.pdf",
		FileType: "application/pdf",
		FileSize: 5,
		Data:     strings.NewReader("hello"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, doc.DocumentID)
	assert.Equal(t, "hello", string(blobs.objects[doc.S3Key]))

	stored, err := docs.Get(context.Background(), "u1", doc.DocumentID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, doc.S3Key, stored.S3Key)
}

func TestUploadRejectsOversizeDeclaredFile(t *testing.T) {
	svc := newTestDocumentService(newFakeDocumentStore(), newFakeBlobStore())

	_, err := svc.Upload(context.Background(), UploadDocumentRequest{
		UserID:   "u1",
		FileName: "huge.pdf",
		FileSize: maxDocumentSize + 1,
		Data:     strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, ErrDocumentTooLarge)
}

// endlessReader never runs out of bytes; it stands in for an oversize
// stream with no declared length.
type endlessReader struct{}

func (endlessReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'a'
	}
	return len(p), nil
}

func TestUploadRejectsOversizeUnknownSizeStream(t *testing.T) {
	docs := newFakeDocumentStore()
	blobs := newFakeBlobStore()
	svc := newTestDocumentService(docs, blobs)

	_, err := svc.Upload(context.Background(), UploadDocumentRequest{
		UserID:   "u1",
		FileName: "stream.bin",
		FileSize: 0,
		Data:     io.LimitReader(endlessReader{}, maxDocumentSize+1024),
	})
	assert.ErrorIs(t, err, ErrDocumentTooLarge)
	// Nothing truncated gets stored.
	assert.Empty(t, docs.docs)
}

func TestDeleteRemovesMetadataWhenBlobDeleteFails(t *testing.T) {
	docs := newFakeDocumentStore()
	blobs := newFakeBlobStore()
	svc := newTestDocumentService(docs, blobs)

	doc, err := svc.Upload(context.Background(), UploadDocumentRequest{
		UserID:   "u1",
		FileName: "resume.pdf",
		FileSize: 5,
		Data:     strings.NewReader("hello"),
	})
	require.NoError(t, err)

	blobs.deleteErr = errors.New("object store down")

	require.NoError(t, svc.Delete(context.Background(), "u1", doc.DocumentID))
	assert.Equal(t, []string{doc.S3Key}, blobs.deleted)
	assert.Empty(t, docs.docs)
}

func TestDeleteRemovesBothBlobAndMetadata(t *testing.T) {
	docs := newFakeDocumentStore()
	blobs := newFakeBlobStore()
	svc := newTestDocumentService(docs, blobs)

	doc, err := svc.Upload(context.Background(), UploadDocumentRequest{
		UserID:   "u1",
		FileName: "resume.pdf",
		FileSize: 5,
		Data:     strings.NewReader("hello"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "u1", doc.DocumentID))
	assert.Empty(t, blobs.objects)
	assert.Empty(t, docs.docs)
}

func TestDeleteMissingDocument(t *testing.T) {
	svc := newTestDocumentService(newFakeDocumentStore(), newFakeBlobStore())

	err := svc.Delete(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestPresignedURLByDocumentID(t *testing.T) {
	docs := newFakeDocumentStore()
	blobs := newFakeBlobStore()
	svc := newTestDocumentService(docs, blobs)

	doc, err := svc.Upload(context.Background(), UploadDocumentRequest{
		UserID:   "u1",
		FileName: "resume.pdf",
		FileSize: 5,
		Data:     strings.NewReader("hello"),
	})
	require.NoError(t, err)

	url, err := svc.PresignedURL(context.Background(), "u1", doc.DocumentID, "")
	require.NoError(t, err)
	assert.Equal(t, "https://blobs.example.com/"+doc.S3Key, url)

	url, err = svc.PresignedURL(context.Background(), "", "", doc.S3Key)
	require.NoError(t, err)
	assert.Equal(t, "https://blobs.example.com/"+doc.S3Key, url)
}
