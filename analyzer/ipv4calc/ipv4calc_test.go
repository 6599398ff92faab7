package ipv4calc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Check the full breakdown of a typical /24 address.
func TestAnalyzeAddress(t *testing.T) {
	info, err := AnalyzeAddress("192.168.1.10/24")
	require.NoError(t, err)

	require.Equal(t, "192.168.1.10", info.Address)
	require.Equal(t, 24, info.PrefixLength)
	require.Equal(t, "255.255.255.0", info.SubnetMask)
	require.Equal(t, "0.0.0.255", info.WildcardMask)
	require.Equal(t, "192.168.1.0", info.NetworkAddress)
	require.Equal(t, "192.168.1.255", info.BroadcastAddress)
	require.Equal(t, "192.168.1.1", info.FirstHost)
	require.Equal(t, "192.168.1.254", info.LastHost)
	require.EqualValues(t, 256, info.TotalAddresses)
	require.EqualValues(t, 254, info.UsableHosts)
	require.True(t, info.IsPrivate)
	require.Equal(t, "C", info.Class)
	require.Equal(t, "11000000.10101000.00000001.00001010", info.Binary)
	require.Equal(t, "C0A8010A", info.Hex)
}

// Check that a bare address is treated as a /32 with no usable host range.
func TestAnalyzeAddressBare(t *testing.T) {
	info, err := AnalyzeAddress("10.0.0.1")
	require.NoError(t, err)

	require.Equal(t, 32, info.PrefixLength)
	require.EqualValues(t, 1, info.TotalAddresses)
	require.Zero(t, info.UsableHosts)
	require.Equal(t, "N/A", info.FirstHost)
	require.Equal(t, "N/A", info.LastHost)
	require.Equal(t, "A", info.Class)
}

// Check that a /31 point-to-point link has no usable host range either.
func TestAnalyzeAddressSlash31(t *testing.T) {
	info, err := AnalyzeAddress("203.0.113.0/31")
	require.NoError(t, err)
	require.EqualValues(t, 2, info.TotalAddresses)
	require.Zero(t, info.UsableHosts)
}

// Check address class and special flags recognition.
func TestAnalyzeAddressClasses(t *testing.T) {
	info, err := AnalyzeAddress("127.0.0.1")
	require.NoError(t, err)
	require.True(t, info.IsLoopback)
	require.Equal(t, "A (Loopback)", info.Class)

	info, err = AnalyzeAddress("224.0.0.1")
	require.NoError(t, err)
	require.True(t, info.IsMulticast)
	require.Equal(t, "D (Multicast)", info.Class)

	info, err = AnalyzeAddress("172.16.5.4/12")
	require.NoError(t, err)
	require.True(t, info.IsPrivate)
	require.Equal(t, "B", info.Class)
}

// Check that garbage input is rejected.
func TestAnalyzeAddressInvalid(t *testing.T) {
	_, err := AnalyzeAddress("not-an-address")
	require.Error(t, err)

	_, err = AnalyzeAddress("2001:db8::1/64")
	require.Error(t, err)
}
