package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIOMqqnkVzrm0SdG6UOoqKLsabgH5C9okWi0dh2l9GKJl user@host"

func testMap(t *testing.T) (Map, string, string) {
	t.Helper()
	dir := t.TempDir()
	user := filepath.Join(dir, "qdrive", ".ssh", "authorized_keys")
	admin := filepath.Join(dir, "admin", "administrators_authorized_keys")
	return NewMap(user, admin), user, admin
}

func TestResolve(t *testing.T) {
	m, user, admin := testMap(t)

	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "qdrive", want: user},
		{name: "QDRIVE", want: user},
		{name: "QDriveAdmin", want: admin},
		{name: " qdriveadmin ", want: admin},
		{name: "root", wantErr: true},
		{name: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Resolve(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidVault)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, []string{"qdrive", "qdriveadmin"}, m.Names())
}

func TestInject_CreatesFileAndParents(t *testing.T) {
	m, user, _ := testMap(t)

	require.NoError(t, Inject("QDrive", "  "+key+"  ", m))

	b, err := os.ReadFile(user)
	require.NoError(t, err)
	assert.Equal(t, key+"\n", string(b))
}

func TestInject_AppendsAfterExistingContent(t *testing.T) {
	m, _, admin := testMap(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(admin), 0o700))
	require.NoError(t, os.WriteFile(admin, []byte("ssh-rsa AAAA old"), 0o600))

	require.NoError(t, Inject("qdriveadmin", key, m))

	b, err := os.ReadFile(admin)
	require.NoError(t, err)
	assert.Equal(t, "ssh-rsa AAAA old\n"+key+"\n", string(b))

	require.NoError(t, Inject("qdriveadmin", "ssh-ed25519 BBBB second", m))
	b, err = os.ReadFile(admin)
	require.NoError(t, err)
	assert.Equal(t, []string{"ssh-rsa AAAA old", key, "ssh-ed25519 BBBB second"},
		strings.Split(strings.TrimRight(string(b), "\n"), "\n"))
}

func TestInject_InvalidVaultTouchesNothing(t *testing.T) {
	m, user, admin := testMap(t)

	err := Inject("root", key, m)
	assert.ErrorIs(t, err, ErrInvalidVault)

	for _, p := range []string{user, admin, filepath.Dir(user), filepath.Dir(admin)} {
		_, statErr := os.Stat(p)
		assert.True(t, os.IsNotExist(statErr), p)
	}
}

func TestInject_InvalidPayload(t *testing.T) {
	m, user, _ := testMap(t)

	for _, payload := range []string{"", "   ", key + "\nssh-rsa injected", "a\rb"} {
		err := Inject("qdrive", payload, m)
		assert.ErrorIs(t, err, ErrInvalidPayload, "%q", payload)
	}
	_, err := os.Stat(user)
	assert.True(t, os.IsNotExist(err))
}

func TestInject_IOError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	m := NewMap(filepath.Join(blocker, "sub", "authorized_keys"), "")
	err := Inject("qdrive", key, m)

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "mkdir", ioErr.Op)

	assert.ErrorIs(t, Inject("qdriveadmin", key, m), ErrInvalidVault, "unconfigured vault")
}

func TestInject_ConcurrentAppendsKeepLinesIntact(t *testing.T) {
	m, user, _ := testMap(t)

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, Inject("qdrive", fmt.Sprintf("ssh-ed25519 KEY%02d", i), m))
		}()
	}
	wg.Wait()

	b, err := os.ReadFile(user)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	assert.Len(t, lines, n)
	for i := 0; i < n; i++ {
		assert.Contains(t, lines, fmt.Sprintf("ssh-ed25519 KEY%02d", i))
	}
}
