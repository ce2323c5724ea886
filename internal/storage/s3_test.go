package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	failPut bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut {
		return nil, errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StorePutDelete(t *testing.T) {
	fake := newFakeS3()
	store := newS3Store(fake, "listings", "https://cdn.example.com")
	ctx := context.Background()

	key, err := store.Put(ctx, "profiles", "png", strings.NewReader("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), fake.objects[key])
	assert.Equal(t, "image/png", fake.types[key])
	assert.Equal(t, "https://cdn.example.com/"+key, store.URL(key))

	require.NoError(t, store.Delete(ctx, key))
	assert.Empty(t, fake.objects)
}

func TestS3StorePutFailure(t *testing.T) {
	fake := newFakeS3()
	fake.failPut = true
	store := newS3Store(fake, "listings", "https://cdn.example.com")

	_, err := store.Put(context.Background(), "cars", "jpg", strings.NewReader("x"), "")
	assert.Error(t, err)
}
