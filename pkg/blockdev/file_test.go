package blockdev_test

import (
	"path/filepath"
	"testing"

	"github.com/eric29200/kos/pkg/blockdev"
	"github.com/eric29200/kos/pkg/errno"
	"github.com/stretchr/testify/require"
)

func TestFileDeviceWriteThenReadRoundtrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")

	dev, err := blockdev.Open(path)
	require.NoError(t, err)
	defer dev.Close()

	block := make([]byte, 512)
	for i := range block {
		block[i] = byte(i)
	}
	require.NoError(t, dev.WriteBlock(3, 512, block))

	out := make([]byte, 512)
	require.NoError(t, dev.ReadBlock(3, 512, out))
	require.Equal(t, block, out)
}

func TestFileDeviceReadUnwrittenBlockIsZeroFilled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	dev, err := blockdev.Open(path)
	require.NoError(t, err)
	defer dev.Close()

	out := make([]byte, 512)
	for i := range out {
		out[i] = 0xFF
	}
	require.NoError(t, dev.ReadBlock(10, 512, out))
	for _, b := range out {
		require.Equal(t, byte(0), b)
	}
}

func TestFileDeviceSecondOpenIsBusy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	dev, err := blockdev.Open(path)
	require.NoError(t, err)
	defer dev.Close()

	_, err = blockdev.Open(path)
	require.ErrorIs(t, err, errno.DeviceBusy)
}

func TestFileDeviceDistinctDevicesHaveDistinctIDs(t *testing.T) {
	a, err := blockdev.Open(filepath.Join(t.TempDir(), "a.img"))
	require.NoError(t, err)
	defer a.Close()

	b, err := blockdev.Open(filepath.Join(t.TempDir(), "b.img"))
	require.NoError(t, err)
	defer b.Close()

	require.NotEqual(t, a.ID(), b.ID())
}
