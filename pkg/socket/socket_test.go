package socket_test

import (
	"testing"

	"github.com/eric29200/kos/pkg/errno"
	"github.com/eric29200/kos/pkg/socket"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestUnixBindListenConnectAcceptRoundtrip(t *testing.T) {
	fam := socket.NewUnixFamily(rate.Inf, 8, nil)

	listener := fam.NewSocket(socket.SockStream, 0)
	require.NoError(t, fam.Bind(listener, "/tmp/test.sock"))
	require.NoError(t, fam.Listen(listener, 4))

	client := fam.NewSocket(socket.SockStream, 0)
	require.NoError(t, fam.Connect(client, "/tmp/test.sock"))

	server, err := fam.Accept(listener)
	require.NoError(t, err)
	require.Equal(t, listener.Addr, server.Addr)

	n, err := client.Send([]byte("hello"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	buf := make([]byte, 16)
	n, err = server.Recv(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))

	n, err = server.Send([]byte("world"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	n, err = client.Recv(buf)
	require.NoError(t, err)
	require.Equal(t, "world", string(buf[:n]))
}

func TestUnixConnectToUnknownNameRefused(t *testing.T) {
	fam := socket.NewUnixFamily(rate.Inf, 8, nil)
	client := fam.NewSocket(socket.SockStream, 0)
	err := fam.Connect(client, "/tmp/nowhere.sock")
	require.ErrorIs(t, err, errno.ConnRefused)
}

func TestUnixDoubleBindSameNameFails(t *testing.T) {
	fam := socket.NewUnixFamily(rate.Inf, 8, nil)
	a := fam.NewSocket(socket.SockStream, 0)
	b := fam.NewSocket(socket.SockStream, 0)
	require.NoError(t, fam.Bind(a, "/tmp/dup.sock"))
	require.ErrorIs(t, fam.Bind(b, "/tmp/dup.sock"), errno.Exists)
}

func TestUnixAcceptWithNoPendingConnectionWouldBlock(t *testing.T) {
	fam := socket.NewUnixFamily(rate.Inf, 8, nil)
	listener := fam.NewSocket(socket.SockStream, 0)
	require.NoError(t, fam.Bind(listener, "/tmp/empty.sock"))
	require.NoError(t, fam.Listen(listener, 4))

	_, err := fam.Accept(listener)
	require.ErrorIs(t, err, errno.WouldBlock)
}

func TestUnixConnectRateLimited(t *testing.T) {
	fam := socket.NewUnixFamily(0, 1, nil) // one token, never refills
	listener := fam.NewSocket(socket.SockStream, 0)
	require.NoError(t, fam.Bind(listener, "/tmp/limited.sock"))
	require.NoError(t, fam.Listen(listener, 4))

	first := fam.NewSocket(socket.SockStream, 0)
	require.NoError(t, fam.Connect(first, "/tmp/limited.sock"))

	second := fam.NewSocket(socket.SockStream, 0)
	err := fam.Connect(second, "/tmp/limited.sock")
	require.ErrorIs(t, err, errno.WouldBlock)
}

func TestSendOnUnconnectedSocketNotConnected(t *testing.T) {
	fam := socket.NewUnixFamily(rate.Inf, 8, nil)
	s := fam.NewSocket(socket.SockStream, 0)
	_, err := s.Send([]byte("x"))
	require.ErrorIs(t, err, errno.NotConnected)
}

func TestDefaultProtoOpsReportsNotSupported(t *testing.T) {
	var ops socket.DefaultProtoOps
	s := socket.New(socket.AFUnix, socket.SockDgram, 0, ops, nil)
	require.ErrorIs(t, ops.Bind(s, "x"), errno.NotSupported)
	_, err := ops.GetSockOpt(s, 0, 0)
	require.ErrorIs(t, err, errno.NotSupported)
}

func TestSocketTableLookupAndRemove(t *testing.T) {
	fam := socket.NewUnixFamily(rate.Inf, 8, nil)
	tbl := socket.NewTable()
	s := fam.NewSocket(socket.SockStream, 0)
	tbl.Register(s)

	got, err := tbl.Lookup(s.Inode)
	require.NoError(t, err)
	require.Same(t, s, got)

	tbl.Remove(s)
	_, err = tbl.Lookup(s.Inode)
	require.ErrorIs(t, err, errno.InvalidArg)
}

func TestFileOpsReadWriteThroughSocket(t *testing.T) {
	fam := socket.NewUnixFamily(rate.Inf, 8, nil)

	listener := fam.NewSocket(socket.SockStream, 0)
	require.NoError(t, fam.Bind(listener, "/tmp/fops.sock"))
	require.NoError(t, fam.Listen(listener, 4))

	client := fam.NewSocket(socket.SockStream, 0)
	require.NoError(t, fam.Connect(client, "/tmp/fops.sock"))
	server, err := fam.Accept(listener)
	require.NoError(t, err)

	clientOps := socket.FileOps(client)
	serverOps := socket.FileOps(server)

	n, err := clientOps.Write(nil, []byte("ping"), 0)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	buf := make([]byte, 16)
	n, err = serverOps.Read(nil, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))

	require.NoError(t, serverOps.Release(nil))
}
