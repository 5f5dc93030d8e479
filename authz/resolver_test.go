package authz_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/marketedge/auth-service/authz"
	"github.com/marketedge/auth-service/internal/autherr"
	"github.com/marketedge/auth-service/principals"
	principalrepofake "github.com/marketedge/auth-service/principals/repofake"
	"github.com/marketedge/auth-service/token"
	familyrepofake "github.com/marketedge/auth-service/token/repofake"
	"github.com/stretchr/testify/require"
)

type resolverFixture struct {
	manager       *token.Manager
	principalRepo principals.Repo
	now           time.Time
	setNow        func(time.Time)
}

func setupResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()

	accessSigner, refreshSigner, err := token.DeriveSigners([]byte("resolver-test-secret"))
	require.NoError(t, err)

	f := &resolverFixture{
		principalRepo: principalrepofake.NewFakePrincipalRepo(),
		now:           time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.setNow = func(at time.Time) { f.now = at }
	f.manager = token.New(familyrepofake.NewFakeFamilyRepo(), f.principalRepo, accessSigner, refreshSigner,
		token.WithNowFunc(func() time.Time { return f.now }),
	)
	return f
}

func (f *resolverFixture) issueFor(t *testing.T, tenantID string) string {
	t.Helper()
	principal := &principals.Principal{
		ID:       "user-" + tenantID,
		Email:    "user@" + tenantID + ".example.com",
		TenantID: tenantID,
		Role:     principals.RoleAnalyst,
	}
	require.NoError(t, f.principalRepo.Upsert(principal))
	pair, err := f.manager.Issue(principal)
	require.NoError(t, err)
	return pair.AccessToken
}

// stubVerifier stands in for the upstream fallback.
type stubVerifier struct {
	tc     *authz.TenantContext
	err    error
	called bool
}

func (s *stubVerifier) Name() string { return "stub" }

func (s *stubVerifier) Verify(ctx context.Context, rawToken string) (*authz.TenantContext, error) {
	s.called = true
	if s.err != nil {
		return nil, s.err
	}
	return s.tc, nil
}

func TestResolver_AuthorizeSameTenant(t *testing.T) {
	f := setupResolverFixture(t)
	resolver := authz.NewResolver(authz.NewInternalVerifier(f.manager))

	accessToken := f.issueFor(t, "tenant-a")

	tc, err := resolver.Authorize(context.Background(), accessToken, "tenant-a")
	require.NoError(t, err)
	require.Equal(t, "tenant-a", tc.TenantID)
	require.Equal(t, "internal", tc.Source)
	require.True(t, tc.HasPermission("read:market_data"))
}

func TestResolver_TenantMismatchIsDenied(t *testing.T) {
	f := setupResolverFixture(t)
	resolver := authz.NewResolver(authz.NewInternalVerifier(f.manager))

	accessToken := f.issueFor(t, "tenant-a")

	tc, err := resolver.Authorize(context.Background(), accessToken, "tenant-b")
	require.Nil(t, tc)
	require.Equal(t, autherr.CodeTenantMismatch, autherr.CodeOf(err))
	require.Equal(t, 403, autherr.HTTPStatus(err))
}

func TestResolver_TenantIsolationRandomized(t *testing.T) {
	f := setupResolverFixture(t)
	resolver := authz.NewResolver(authz.NewInternalVerifier(f.manager))

	rng := rand.New(rand.NewSource(42))
	tokens := make(map[string]string)
	for i := 0; i < 10; i++ {
		tenantID := fmt.Sprintf("tenant-%d", i)
		tokens[tenantID] = f.issueFor(t, tenantID)
	}

	for i := 0; i < 200; i++ {
		tokenTenant := fmt.Sprintf("tenant-%d", rng.Intn(10))
		resourceTenant := fmt.Sprintf("tenant-%d", rng.Intn(10))

		tc, err := resolver.Authorize(context.Background(), tokens[tokenTenant], resourceTenant)
		if tokenTenant == resourceTenant {
			require.NoError(t, err)
			require.Equal(t, tokenTenant, tc.TenantID)
		} else {
			require.Nil(t, tc)
			require.Equal(t, autherr.CodeTenantMismatch, autherr.CodeOf(err))
		}
	}
}

func TestResolver_MissingTokenIsRejected(t *testing.T) {
	f := setupResolverFixture(t)
	resolver := authz.NewResolver(authz.NewInternalVerifier(f.manager))

	tc, err := resolver.Authorize(context.Background(), "", "tenant-a")
	require.Nil(t, tc)
	require.Equal(t, 401, autherr.HTTPStatus(err))
}

func TestResolver_FallbackVerifierUsed(t *testing.T) {
	f := setupResolverFixture(t)
	fallback := &stubVerifier{tc: &authz.TenantContext{
		TenantID:    "tenant-a",
		PrincipalID: "user-1",
		Source:      "stub",
	}}
	resolver := authz.NewResolver(authz.NewInternalVerifier(f.manager), fallback)

	// Not an internal token; the chain should move on to the fallback.
	tc, err := resolver.Authorize(context.Background(), "some-upstream-token", "tenant-a")
	require.NoError(t, err)
	require.True(t, fallback.called)
	require.Equal(t, "stub", tc.Source)
}

func TestResolver_ExpiredTokenNeverFallsThrough(t *testing.T) {
	f := setupResolverFixture(t)
	fallback := &stubVerifier{tc: &authz.TenantContext{TenantID: "tenant-a", Source: "stub"}}
	resolver := authz.NewResolver(authz.NewInternalVerifier(f.manager), fallback)

	accessToken := f.issueFor(t, "tenant-a")
	f.setNow(f.now.Add(31 * time.Minute))

	tc, err := resolver.Authorize(context.Background(), accessToken, "tenant-a")
	require.Nil(t, tc)
	require.Equal(t, autherr.CodeTokenExpired, autherr.CodeOf(err))
	require.False(t, fallback.called, "an expired internal token must not reach the fallback verifier")
}

func TestResolver_TenantNeutralEndpoint(t *testing.T) {
	f := setupResolverFixture(t)
	resolver := authz.NewResolver(authz.NewInternalVerifier(f.manager))

	accessToken := f.issueFor(t, "tenant-a")

	tc, err := resolver.Authorize(context.Background(), accessToken, "")
	require.NoError(t, err)
	require.Equal(t, "tenant-a", tc.TenantID)
}
