package filestorage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockObjectAPI struct {
	mock.Mock
}

func (m *MockObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func (m *MockObjectAPI) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.DeleteObjectOutput), args.Error(1)
}

func TestS3Store_SaveUsesBucketAndKey(t *testing.T) {
	api := new(MockObjectAPI)
	store := NewS3StoreWithClient(api, "waste-images", "https://cdn.example.com/", zap.NewNop())
	ctx := context.Background()

	api.On("PutObject", ctx, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "waste-images" &&
			strings.HasPrefix(*in.Key, "reports/") &&
			*in.ContentType == "image/jpeg"
	})).Return(&s3.PutObjectOutput{}, nil)

	url, err := store.Save(ctx, "reports", ".jpg", "image/jpeg", strings.NewReader("jpeg"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/reports/"))
	api.AssertExpectations(t)
}

func TestS3Store_DeleteOnlyOwnURLs(t *testing.T) {
	api := new(MockObjectAPI)
	store := NewS3StoreWithClient(api, "waste-images", "https://cdn.example.com", zap.NewNop())
	ctx := context.Background()

	api.On("DeleteObject", ctx, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return *in.Key == "reports/a.jpg"
	})).Return(&s3.DeleteObjectOutput{}, nil)

	require.NoError(t, store.Delete(ctx, "https://cdn.example.com/reports/a.jpg"))
	require.NoError(t, store.Delete(ctx, "https://elsewhere.example.com/reports/a.jpg"))
	api.AssertNumberOfCalls(t, "DeleteObject", 1)
}

func TestS3Store_SaveError(t *testing.T) {
	api := new(MockObjectAPI)
	store := NewS3StoreWithClient(api, "b", "https://cdn.example.com", zap.NewNop())
	api.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("denied"))

	_, err := store.Save(context.Background(), "reports", ".png", "image/png", strings.NewReader("x"))
	assert.ErrorContains(t, err, "denied")
}
