package identity_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/marketedge/auth-service/identity"
	"github.com/marketedge/auth-service/internal/autherr"
	"github.com/marketedge/auth-service/internal/config"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testCode        = "abc123"
	testRedirectURI = "https://app.example.com/callback"
)

type fakeUpstream struct {
	exchangeCalls int
	exchangeErrs  []error
	profile       *identity.UpstreamProfile
}

func (f *fakeUpstream) newAdapter(t *testing.T, options ...identity.AdapterOption) *identity.Adapter {
	t.Helper()

	opts := []identity.AdapterOption{
		identity.WithRetryDelay(time.Millisecond),
		identity.WithExchangeFunc(func(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
			call := f.exchangeCalls
			f.exchangeCalls++
			if call < len(f.exchangeErrs) && f.exchangeErrs[call] != nil {
				return nil, f.exchangeErrs[call]
			}
			tok := &oauth2.Token{AccessToken: "upstream-access"}
			return tok.WithExtra(map[string]any{"id_token": "raw-id-token"}), nil
		}),
		identity.WithVerifyFunc(func(ctx context.Context, rawIDToken string) (*identity.UpstreamProfile, error) {
			if f.profile == nil {
				return nil, errors.New("no profile configured")
			}
			return f.profile, nil
		}),
	}
	opts = append(opts, options...)

	adapter, err := identity.NewAdapter(context.Background(), config.Upstream{}, testRedirectURI, opts...)
	require.NoError(t, err)
	return adapter
}

func TestExchangeCode_Success(t *testing.T) {
	upstream := &fakeUpstream{
		profile: &identity.UpstreamProfile{Sub: "u1", Email: "a@b.com", Organization: "tenant-1"},
	}
	adapter := upstream.newAdapter(t)

	profile, err := adapter.ExchangeCode(context.Background(), testCode, testRedirectURI)
	require.NoError(t, err)
	require.Equal(t, "u1", profile.Sub)
	require.Equal(t, "a@b.com", profile.Email)
	require.Equal(t, "tenant-1", profile.Organization)
	require.Equal(t, 1, upstream.exchangeCalls)
}

func TestExchangeCode_MalformedInputsSkipNetwork(t *testing.T) {
	upstream := &fakeUpstream{profile: &identity.UpstreamProfile{Sub: "u1"}}
	adapter := upstream.newAdapter(t)

	tests := []struct {
		name        string
		code        string
		redirectURI string
	}{
		{"empty code", "", testRedirectURI},
		{"code with invalid chars", "abc 123;drop", testRedirectURI},
		{"oversized code", string(make([]byte, 600)), testRedirectURI},
		{"empty redirect", testCode, ""},
		{"relative redirect", testCode, "/callback"},
		{"bad scheme", testCode, "javascript:alert(1)"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := adapter.ExchangeCode(context.Background(), tc.code, tc.redirectURI)
			require.Error(t, err)
			require.Equal(t, autherr.CodeInvalidRequest, autherr.CodeOf(err))
		})
	}

	// None of the malformed inputs may reach the provider.
	require.Equal(t, 0, upstream.exchangeCalls)
}

func TestExchangeCode_InvalidGrantNotRetried(t *testing.T) {
	rejection := &oauth2.RetrieveError{
		Response: &http.Response{StatusCode: http.StatusBadRequest},
		Body:     []byte(`{"error":"invalid_grant"}`),
	}
	upstream := &fakeUpstream{
		exchangeErrs: []error{rejection, rejection},
		profile:      &identity.UpstreamProfile{Sub: "u1"},
	}
	adapter := upstream.newAdapter(t)

	_, err := adapter.ExchangeCode(context.Background(), testCode, testRedirectURI)
	require.Error(t, err)
	require.Equal(t, autherr.CodeInvalidGrant, autherr.CodeOf(err))
	require.Equal(t, 1, upstream.exchangeCalls)
}

func TestExchangeCode_TransientFailureRetriedOnce(t *testing.T) {
	upstream := &fakeUpstream{
		exchangeErrs: []error{errors.New("connection refused")},
		profile:      &identity.UpstreamProfile{Sub: "u1", Email: "a@b.com"},
	}
	adapter := upstream.newAdapter(t)

	profile, err := adapter.ExchangeCode(context.Background(), testCode, testRedirectURI)
	require.NoError(t, err)
	require.Equal(t, "u1", profile.Sub)
	require.Equal(t, 2, upstream.exchangeCalls)
}

func TestExchangeCode_UpstreamDownAfterRetry(t *testing.T) {
	down := &oauth2.RetrieveError{
		Response: &http.Response{StatusCode: http.StatusBadGateway},
	}
	upstream := &fakeUpstream{
		exchangeErrs: []error{down, down},
		profile:      &identity.UpstreamProfile{Sub: "u1"},
	}
	adapter := upstream.newAdapter(t)

	_, err := adapter.ExchangeCode(context.Background(), testCode, testRedirectURI)
	require.Error(t, err)
	require.Equal(t, autherr.CodeUpstreamUnavailable, autherr.CodeOf(err))
	require.True(t, autherr.Retryable(err))
	require.Equal(t, 2, upstream.exchangeCalls)
}

func TestExchangeCode_EmptySubjectRejected(t *testing.T) {
	upstream := &fakeUpstream{profile: &identity.UpstreamProfile{Sub: ""}}
	adapter := upstream.newAdapter(t)

	_, err := adapter.ExchangeCode(context.Background(), testCode, testRedirectURI)
	require.Error(t, err)
	require.Equal(t, autherr.CodeInvalidGrant, autherr.CodeOf(err))
}
