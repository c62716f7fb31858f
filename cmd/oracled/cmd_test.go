package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	errorsmod "cosmossdk.io/errors"
	"github.com/stretchr/testify/require"

	"github.com/GPTx-global/sun-network-oracle/oracle/config"
	"github.com/GPTx-global/sun-network-oracle/oracle/types"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)

	err := execute(cmd)
	return out.String(), err
}

func TestInitCmd(t *testing.T) {
	home := t.TempDir()

	out, err := run(t, "init", "--home", home)
	require.NoError(t, err)
	require.Contains(t, out, config.FileName)

	_, err = os.Stat(filepath.Join(home, config.FileName))
	require.NoError(t, err)

	_, err = run(t, "init", "--home", home)
	require.Error(t, err)

	_, err = run(t, "init", "--home", home, "--overwrite")
	require.NoError(t, err)
}

func TestDelayCmd(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want []string
	}{
		{"lowest", []string{"0xaa", "cc", "bb", "aa"}, []string{"rank: 0", "present: true", "delay: 0s"}},
		{"highest", []string{"cc", "aa", "bb", "cc", "--step", "10s"}, []string{"rank: 2", "delay: 20s"}},
		{"missing", []string{"dd", "aa", "bb", "--step", "1m"}, []string{"rank: 2", "present: false", "delay: 2m0s"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := run(t, append([]string{"delay"}, tc.args...)...)
			require.NoError(t, err)
			for _, w := range tc.want {
				require.Contains(t, out, w)
			}
		})
	}
}

func TestHashCmd(t *testing.T) {
	out, err := run(t, "hash", "trx", "TLa2f6VPqDgRE67v1736s7bJ8Ray5wYjU7", "1000", "1")
	require.NoError(t, err)
	require.Len(t, strings.TrimSpace(out), 64)

	_, err = run(t, "hash", "trc20", "TLa2f6VPqDgRE67v1736s7bJ8Ray5wYjU7", "1000", "1")
	require.Error(t, err)

	out20, err := run(t, "hash", "TRC20", "TLa2f6VPqDgRE67v1736s7bJ8Ray5wYjU7", "1000", "1", "--token", "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t")
	require.NoError(t, err)
	require.NotEqual(t, out, out20)

	_, err = run(t, "hash", "erc20", "TLa2f6VPqDgRE67v1736s7bJ8Ray5wYjU7", "1000", "1")
	require.True(t, errorsmod.IsOf(err, types.ErrUnknownEventType))
}

func TestStartRejectsIncompleteConfig(t *testing.T) {
	home := t.TempDir()

	_, err := run(t, "start", "--home", home)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid config")
}
