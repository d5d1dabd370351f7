package userlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
)

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "users.csv")

	l, accounts, err := Open(path, nil)
	require.NoError(t, err)
	defer l.Close()

	assert.Empty(t, accounts)
	_, err = os.Stat(path)
	assert.NoError(t, err)
	assert.Equal(t, path, l.Path())
}

func TestOpen_EmptyPath(t *testing.T) {
	_, _, err := Open("", nil)
	assert.Error(t, err)
}

func TestAppend_ReopenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")

	l, _, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, l.Append(domain.UserAccount{Username: "alice", Password: "pw1"}))
	require.NoError(t, l.Append(domain.UserAccount{Username: "bob", Password: "with,comma"}))
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alice,pw1\nbob,with,comma\n", string(raw))

	l, accounts, err := Open(path, nil)
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, []domain.UserAccount{
		{Username: "alice", Password: "pw1"},
		{Username: "bob", Password: "with,comma"},
	}, accounts)
}

func TestAppend_RejectsInvalid(t *testing.T) {
	l, _, err := Open(filepath.Join(t.TempDir(), "users.csv"), nil)
	require.NoError(t, err)
	defer l.Close()

	err = l.Append(domain.UserAccount{Username: "a,b", Password: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAppend_AfterClose(t *testing.T) {
	l, _, err := Open(filepath.Join(t.TempDir(), "users.csv"), nil)
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "double close is a no-op")

	err = l.Append(domain.UserAccount{Username: "alice", Password: "x"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReadAll_SkipsMalformed(t *testing.T) {
	input := strings.Join([]string{
		"alice,pw",
		"",
		"no-comma-line",
		",missing-user",
		"carol,\r",
		"dave,p,w",
	}, "\n")

	accounts, err := ReadAll(strings.NewReader(input), nil)
	require.NoError(t, err)
	assert.Equal(t, []domain.UserAccount{
		{Username: "alice", Password: "pw"},
		{Username: "carol", Password: ""},
		{Username: "dave", Password: "p,w"},
	}, accounts)
}

func TestOpen_RepairsTruncatedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.csv")
	require.NoError(t, os.WriteFile(path, []byte("alice,pw\nbob,half"), 0600))

	l, accounts, err := Open(path, nil)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
	require.NoError(t, l.Append(domain.UserAccount{Username: "carol", Password: "pw"}))
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alice,pw\nbob,half\ncarol,pw\n", string(raw))
}
