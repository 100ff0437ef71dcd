package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/imgcache/downloader"
)

type MockS3Client struct {
	mock.Mock
}

func (m *MockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.GetObjectOutput), args.Error(1)
}

func matchObject(bucket, key string) any {
	return mock.MatchedBy(func(input *s3.GetObjectInput) bool {
		return *input.Bucket == bucket && *input.Key == key
	})
}

func TestDownloader_FetchBytes(t *testing.T) {
	mockClient := new(MockS3Client)
	d := New(mockClient)

	t.Run("Success", func(t *testing.T) {
		mockClient.On("GetObject", mock.Anything, matchObject("bucket", "img/a.png")).Return(&s3.GetObjectOutput{
			Body:          io.NopCloser(strings.NewReader("png")),
			ContentLength: aws.Int64(3),
		}, nil).Once()

		data, err := d.FetchBytes(context.Background(), "s3://bucket/img/a.png")
		require.NoError(t, err)
		assert.Equal(t, []byte("png"), data)
	})

	t.Run("NoSuchKey", func(t *testing.T) {
		mockClient.On("GetObject", mock.Anything, matchObject("bucket", "missing")).
			Return(nil, &types.NoSuchKey{}).Once()

		_, err := d.FetchBytes(context.Background(), "s3://bucket/missing")
		assert.ErrorIs(t, err, downloader.ErrNotFound)
	})

	t.Run("OtherError", func(t *testing.T) {
		boom := errors.New("boom")
		mockClient.On("GetObject", mock.Anything, matchObject("bucket", "boom")).
			Return(nil, boom).Once()

		_, err := d.FetchBytes(context.Background(), "s3://bucket/boom")
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, downloader.ErrNotFound)
	})

	t.Run("WrongScheme", func(t *testing.T) {
		_, err := d.FetchBytes(context.Background(), "http://bucket/a.png")
		assert.ErrorIs(t, err, downloader.ErrUnsupportedScheme)
	})

	mockClient.AssertExpectations(t)
}

func TestDownloader_FetchToStream(t *testing.T) {
	mockClient := new(MockS3Client)
	d := New(mockClient)

	mockClient.On("GetObject", mock.Anything, matchObject("bucket", "b.jpg")).Return(&s3.GetObjectOutput{
		Body: io.NopCloser(strings.NewReader("jpeg-bytes")),
	}, nil).Once()

	var buf bytes.Buffer
	require.NoError(t, d.FetchToStream(context.Background(), "s3://bucket/b.jpg", &buf))
	assert.Equal(t, "jpeg-bytes", buf.String())

	mockClient.On("GetObject", mock.Anything, matchObject("bucket", "gone.jpg")).
		Return(nil, &types.NotFound{}).Once()
	assert.ErrorIs(t, d.FetchToStream(context.Background(), "s3://bucket/gone.jpg", &buf), downloader.ErrNotFound)

	mockClient.AssertExpectations(t)
}

func TestDownloader_ConcurrentFetch(t *testing.T) {
	mockClient := new(MockS3Client)
	d := New(mockClient, WithConcurrency(4))

	mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(input *s3.GetObjectInput) bool {
		return *input.Bucket == "bucket" && *input.Key == "big.png" && input.Range != nil
	})).Return(&s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader("abc")),
		ContentLength: aws.Int64(3),
		ContentRange:  aws.String("bytes 0-2/3"),
	}, nil).Once()

	data, err := d.FetchBytes(context.Background(), "s3://bucket/big.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
	mockClient.AssertExpectations(t)
}
