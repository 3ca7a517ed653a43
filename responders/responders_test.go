package responders

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleLog = `2023-03-01T10:00:00.000Z	INFO	bitswap	found cid QmCidA from QmProvA via QmRespA
2023-03-01T10:00:01.000Z	INFO	core	daemon is ready
2023-03-01T10:00:02.000Z	INFO	bitswap	found cid QmCidB from QmProvB via QmRespB
2023-03-01T10:00:03.000Z	INFO	bitswap	found cid QmCidA from QmProvC via QmRespC
2023-03-01T10:00:04.000Z	INFO	bitswap	found cid QmCidC truncated
`

func TestParse(t *testing.T) {
	m, err := Parse(strings.NewReader(sampleLog))
	require.NoError(t, err)

	require.Equal(t, []string{"QmCidA", "QmCidB"}, m.CIDs)
	require.Equal(t, 2, m.Len())

	require.Equal(t, map[string]string{
		"QmRespA": "QmProvA",
		"QmRespC": "QmProvC",
	}, m.Responders("QmCidA"))
	require.Equal(t, map[string]string{"QmRespB": "QmProvB"}, m.Responders("QmCidB"))

	require.False(t, m.Has("QmCidC"))
	require.NotNil(t, m.Responders("QmCidC"))
	require.Empty(t, m.Responders("QmCidC"))
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0644))

	m, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.txt"))
	require.True(t, os.IsNotExist(err))
}
