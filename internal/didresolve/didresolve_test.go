package didresolve_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwnode/dwnd/internal/codec"
	"github.com/dwnode/dwnd/internal/didresolve"
	"github.com/dwnode/dwnd/internal/model"
)

func fakeDIDKey(t *testing.T) model.DID {
	t.Helper()

	key := make([]byte, 33)
	for i := range key {
		key[i] = byte(i + 1)
	}

	encoded, err := codec.EncodeMultikey(codec.MulticodecP256PubKey, key)
	require.NoError(t, err)

	return model.DID("did:key:" + encoded)
}

func TestKeyResolverSynthesizesDocument(t *testing.T) {
	t.Parallel()

	did := fakeDIDKey(t)

	doc, err := didresolve.NewKeyResolver().Resolve(context.Background(), did)
	require.NoError(t, err)

	assert.Equal(t, string(did), doc.ID)
	require.Len(t, doc.VerificationMethod, 1)
	assert.Contains(t, doc.Authentication, doc.VerificationMethod[0].ID)
	assert.Contains(t, doc.AssertionMethod, doc.VerificationMethod[0].ID)
}

func TestKeyResolverRejectsOtherMethods(t *testing.T) {
	t.Parallel()

	_, err := didresolve.NewKeyResolver().Resolve(context.Background(), model.DID("did:web:example.org"))
	assert.Error(t, err)
}

type fakeFetcher struct {
	calls int
	body  []byte
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	f.calls++

	return f.body, f.err
}

func TestWebResolverFetchesWellKnownDocument(t *testing.T) {
	t.Parallel()

	doc := model.Document{ID: "did:web:example.org"}
	body, err := json.Marshal(doc)
	require.NoError(t, err)

	fetcher := &fakeFetcher{body: body}

	resolved, err := didresolve.NewWebResolver(fetcher).Resolve(context.Background(), model.DID("did:web:example.org"))
	require.NoError(t, err)
	assert.Equal(t, "did:web:example.org", resolved.ID)
}

func TestWebResolverHandlesPathSegments(t *testing.T) {
	t.Parallel()

	var capturedURL string

	fetcher := &capturingFetcher{onFetch: func(u string) { capturedURL = u }}

	_, _ = didresolve.NewWebResolver(fetcher).Resolve(context.Background(), model.DID("did:web:example.org:user:alice"))

	assert.Equal(t, "https://example.org/user/alice/did.json", capturedURL)
}

type capturingFetcher struct {
	onFetch func(url string)
}

func (f *capturingFetcher) Fetch(_ context.Context, requestURL string) ([]byte, error) {
	f.onFetch(requestURL)

	return []byte(`{"id":"did:web:example.org:user:alice"}`), nil
}

func TestCachingResolverReusesFreshEntry(t *testing.T) {
	t.Parallel()

	calls := 0
	base := resolverFunc(func(_ context.Context, did model.DID) (*model.Document, error) {
		calls++

		return &model.Document{ID: string(did)}, nil
	})

	caching := didresolve.NewCachingResolver(base, time.Minute)

	did := model.DID("did:web:example.org")

	_, err := caching.Resolve(context.Background(), did)
	require.NoError(t, err)

	_, err = caching.Resolve(context.Background(), did)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)

	caching.Invalidate(did)

	_, err = caching.Resolve(context.Background(), did)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

type resolverFunc func(ctx context.Context, did model.DID) (*model.Document, error)

func (f resolverFunc) Resolve(ctx context.Context, did model.DID) (*model.Document, error) {
	return f(ctx, did)
}

func TestMultiResolverDispatchesByMethod(t *testing.T) {
	t.Parallel()

	multi := didresolve.NewMultiResolver()
	multi.Register("key", didresolve.NewKeyResolver())

	did := fakeDIDKey(t)

	doc, err := multi.Resolve(context.Background(), did)
	require.NoError(t, err)
	assert.Equal(t, string(did), doc.ID)

	_, err = multi.Resolve(context.Background(), model.DID("did:web:example.org"))
	assert.ErrorIs(t, err, didresolve.ErrUnsupportedMethod)
}
