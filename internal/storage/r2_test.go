package storage

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/mcuredefined/backend/pkg/logger"
)

type fakeObjectAPI struct {
	puts    []s3.PutObjectInput
	deletes []s3.DeleteObjectInput
	err     error
}

func (f *fakeObjectAPI) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.puts = append(f.puts, *params)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectAPI) DeleteObject(_ context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deletes = append(f.deletes, *params)
	return &s3.DeleteObjectOutput{}, nil
}

func newTestStore(api objectAPI) *R2Store {
	return &R2Store{
		client:  api,
		bucket:  "thumbnails",
		baseURL: "https://images.example.com",
		folder:  "topic-images",
		log:     logger.WithModule("storage"),
	}
}

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{Bucket: "b"})
	require.Error(t, err)

	_, err = New(context.Background(), Config{
		AccountID: "acc", AccessKeyID: "key", SecretAccessKey: "secret",
	})
	require.Error(t, err)
}

func TestProcessUploadsDataURI(t *testing.T) {
	api := &fakeObjectAPI{}
	store := newTestStore(api)

	record, err := store.Process(context.Background(), dataURI("image/png", []byte("fake-png")))
	require.NoError(t, err)
	require.Len(t, api.puts, 1)

	key := record["key"].(string)
	require.True(t, strings.HasPrefix(key, "topic-images/"))
	require.True(t, strings.HasSuffix(key, ".png"))
	require.Equal(t, "https://images.example.com/"+key, record["link"])
	require.Equal(t, "image/png", *api.puts[0].ContentType)
	require.Equal(t, "thumbnails", *api.puts[0].Bucket)
}

func TestProcessPassesThroughPlainLink(t *testing.T) {
	api := &fakeObjectAPI{}
	store := newTestStore(api)

	record, err := store.Process(context.Background(), "https://cdn.example.com/poster.jpg")
	require.NoError(t, err)
	require.Empty(t, api.puts)
	require.Equal(t, "https://cdn.example.com/poster.jpg", record["link"])
	require.Equal(t, "", record["key"])
}

func TestProcessPassesThroughStoredRecord(t *testing.T) {
	store := newTestStore(&fakeObjectAPI{})

	record, err := store.Process(context.Background(), map[string]any{
		"link": "https://images.example.com/topic-images/a.png",
		"key":  "topic-images/a.png",
	})
	require.NoError(t, err)
	require.Equal(t, "topic-images/a.png", record["key"])
}

func TestProcessFallsBackToDefaultImage(t *testing.T) {
	store := newTestStore(&fakeObjectAPI{})

	for _, payload := range []any{nil, "not-an-image", 42, map[string]any{}} {
		record, err := store.Process(context.Background(), payload)
		require.NoError(t, err)
		require.Equal(t, DefaultImageLink, record["link"])
		require.Equal(t, "", record["key"])
	}
}

func TestProcessRejectsUnsupportedImageType(t *testing.T) {
	store := newTestStore(&fakeObjectAPI{})

	_, err := store.Process(context.Background(), dataURI("image/tiff", []byte("x")))
	require.Error(t, err)
}

func TestDeleteSkipsEmptyKey(t *testing.T) {
	api := &fakeObjectAPI{}
	store := newTestStore(api)

	require.NoError(t, store.Delete(context.Background(), ""))
	require.Empty(t, api.deletes)

	require.NoError(t, store.Delete(context.Background(), "topic-images/a.png"))
	require.Len(t, api.deletes, 1)
	require.Equal(t, "topic-images/a.png", *api.deletes[0].Key)
}

func TestIsUploadable(t *testing.T) {
	require.True(t, IsUploadable(dataURI("image/webp", []byte("x"))))
	require.False(t, IsUploadable(dataURI("image/tiff", []byte("x"))))
	require.False(t, IsUploadable("https://cdn.example.com/a.png"))
	require.False(t, IsUploadable("data:text/plain;base64,aGk="))
	require.False(t, IsUploadable("data:image/png;base64,%%%"))
}
