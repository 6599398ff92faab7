package osi

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Check the live walkthrough against a local listener.
func TestAnalyzeCommunication(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	port := listener.Addr().(*net.TCPAddr).Port

	report, err := AnalyzeCommunication("127.0.0.1", port, time.Second)
	require.NoError(t, err)
	require.Equal(t, []string{"127.0.0.1"}, report.Addresses)
	require.Equal(t, tcpHeaderBytes+ipHeaderBytes+ethernetHeaderBytes, report.HeaderBytes)
	require.NotEmpty(t, report.ConnectTime)
	require.Len(t, report.Steps, 4)
	require.Equal(t, 7, report.Steps[0].Layer)
	require.Equal(t, 2, report.Steps[3].Layer)
}

func TestAnalyzeCommunicationRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	_, err = AnalyzeCommunication("127.0.0.1", port, time.Second)
	require.ErrorContains(t, err, "cannot connect")
}
