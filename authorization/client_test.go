package authorization_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	authcontext "github.com/nasermirzaei89/reelthread/authentication/context"
	"github.com/nasermirzaei89/reelthread/authorization"
	"github.com/nasermirzaei89/reelthread/authorization/casbin"
	"github.com/stretchr/testify/require"
)

const testPolicy = `p, group1, domain1, data1, read
p, group1, domain1, data2, write
p, moderators, domain1, *, delete
g, alice, group1
g, carol, moderators
`

func newStringClient(t *testing.T) *authorization.Client {
	t.Helper()

	casbinProvider, err := casbin.NewAuthorizationProvider(stringadapter.NewAdapter(testPolicy))
	require.NoError(t, err)

	authzSvc, err := authorization.NewService(casbinProvider)
	require.NoError(t, err)

	return authorization.NewClient(authzSvc)
}

func newFileClient(t *testing.T, content string) (*authorization.Client, *casbin.AuthorizationProvider) {
	t.Helper()

	tmpFile := filepath.Join(t.TempDir(), "policy.csv")

	err := os.WriteFile(tmpFile, []byte(content), 0o600)
	require.NoError(t, err)

	// needs to use file adapter, because string adapter doesn't support saving policies
	casbinProvider, err := casbin.NewAuthorizationProvider(fileadapter.NewAdapter(tmpFile))
	require.NoError(t, err)

	authzSvc, err := authorization.NewService(casbinProvider)
	require.NoError(t, err)

	return authorization.NewClient(authzSvc), casbinProvider
}

func TestNewService(t *testing.T) {
	_, err := authorization.NewService(nil)
	require.ErrorIs(t, err, authorization.ErrNilProvider)
}

func TestClient_CheckAccess(t *testing.T) {
	ctx := context.Background()
	client := newStringClient(t)

	t.Run("allowed access", func(t *testing.T) {
		err := client.CheckAccess(authcontext.WithSubject(ctx, "alice"), "domain1", "data1", "read")
		require.NoError(t, err)
	})

	t.Run("denied access", func(t *testing.T) {
		err := client.CheckAccess(authcontext.WithSubject(ctx, "alice"), "domain1", "data2", "read")
		require.Error(t, err)

		accessDeniedErr := &authorization.AccessDeniedError{}
		require.ErrorAs(t, err, &accessDeniedErr)
	})

	t.Run("wildcard object", func(t *testing.T) {
		err := client.CheckAccess(authcontext.WithSubject(ctx, "carol"), "domain1", "anything", "delete")
		require.NoError(t, err)
	})

	t.Run("anonymous access", func(t *testing.T) {
		err := client.CheckAccess(ctx, "domain1", "data1", "read")
		require.Error(t, err)

		accessDeniedErr := &authorization.AccessDeniedError{}
		require.ErrorAs(t, err, &accessDeniedErr)
		require.Equal(t, authcontext.Anonymous, accessDeniedErr.Subject)
	})
}

func TestClient_CheckOwnerOrAccess(t *testing.T) {
	ctx := context.Background()
	client := newStringClient(t)

	t.Run("owner", func(t *testing.T) {
		err := client.CheckOwnerOrAccess(authcontext.WithSubject(ctx, "bob"), "bob", "domain1", "c1", "delete")
		require.NoError(t, err)
	})

	t.Run("moderator", func(t *testing.T) {
		err := client.CheckOwnerOrAccess(authcontext.WithSubject(ctx, "carol"), "bob", "domain1", "c1", "delete")
		require.NoError(t, err)
	})

	t.Run("stranger", func(t *testing.T) {
		err := client.CheckOwnerOrAccess(authcontext.WithSubject(ctx, "alice"), "bob", "domain1", "c1", "delete")

		accessDeniedErr := &authorization.AccessDeniedError{}
		require.ErrorAs(t, err, &accessDeniedErr)
	})

	t.Run("anonymous never owns", func(t *testing.T) {
		err := client.CheckOwnerOrAccess(ctx, authcontext.Anonymous, "domain1", "c1", "delete")

		accessDeniedErr := &authorization.AccessDeniedError{}
		require.ErrorAs(t, err, &accessDeniedErr)
	})
}

func TestClient_AddToGroup(t *testing.T) {
	ctx := context.Background()
	client, _ := newFileClient(t, "p, group1, domain1, data1, read")

	err := client.AddToGroup(ctx, "alice", "group1")
	require.NoError(t, err)

	err = client.AddToGroup(ctx, "bob", "group2")
	require.NoError(t, err)

	// adding twice is not an error
	err = client.AddToGroup(ctx, "alice", "group1")
	require.NoError(t, err)

	err = client.CheckAccess(authcontext.WithSubject(ctx, "alice"), "domain1", "data1", "read")
	require.NoError(t, err)

	accessDeniedErr := &authorization.AccessDeniedError{}

	err = client.CheckAccess(authcontext.WithSubject(ctx, "bob"), "domain1", "data1", "read")
	require.ErrorAs(t, err, &accessDeniedErr)

	err = client.RemoveFromGroup(ctx, "alice", "group1")
	require.NoError(t, err)

	err = client.CheckAccess(authcontext.WithSubject(ctx, "alice"), "domain1", "data1", "read")
	require.ErrorAs(t, err, &accessDeniedErr)
}

func TestClient_SyncGroup(t *testing.T) {
	ctx := context.Background()
	client, _ := newFileClient(t, `p, admins, domain1, *, delete
g, alice, admins
g, bob, admins
`)

	err := client.SyncGroup(ctx, "admins", " bob ", "carol", "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		subject string
		allowed bool
	}{
		{name: "dropped member", subject: "alice", allowed: false},
		{name: "kept member", subject: "bob", allowed: true},
		{name: "new member", subject: "carol", allowed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.CheckAccess(authcontext.WithSubject(ctx, tt.subject), "domain1", "c1", "delete")
			if tt.allowed {
				require.NoError(t, err)

				return
			}

			accessDeniedErr := &authorization.AccessDeniedError{}
			require.ErrorAs(t, err, &accessDeniedErr)
		})
	}

	t.Run("empty list revokes everyone", func(t *testing.T) {
		err := client.SyncGroup(ctx, "admins")
		require.NoError(t, err)

		err = client.CheckAccess(authcontext.WithSubject(ctx, "bob"), "domain1", "c1", "delete")

		accessDeniedErr := &authorization.AccessDeniedError{}
		require.ErrorAs(t, err, &accessDeniedErr)
	})
}

func TestAuthorizationProvider_AddPolicyFromCSV(t *testing.T) {
	ctx := context.Background()
	client, provider := newFileClient(t, "")

	err := provider.AddPolicyFromCSV(ctx, `# comments are skipped
p, system:authenticated, domain1, *, write
g, dave, system:authenticated
`)
	require.NoError(t, err)

	// loading the same content again skips existing rules
	err = provider.AddPolicyFromCSV(ctx, "g, dave, system:authenticated")
	require.NoError(t, err)

	err = client.CheckAccess(authcontext.WithSubject(ctx, "dave"), "domain1", "x", "write")
	require.NoError(t, err)

	err = provider.AddPolicyFromCSV(ctx, "x, nope")

	unknownErr := casbin.UnknownPolicyTypeError{}
	require.ErrorAs(t, err, &unknownErr)
}
