// Package testutil builds synthetic timestamped frames and captures for
// tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Untagged is passed as the vlan argument for frames without an 802.1Q tag.
const Untagged = -1

var (
	srcMAC = net.HardwareAddr{0x00, 0x1c, 0x73, 0x00, 0x00, 0x01}
	dstMAC = net.HardwareAddr{0x00, 0x1c, 0x73, 0x00, 0x00, 0x02}

	DeviceIP = net.IP{10, 0, 0, 1}
	HostIP   = net.IP{10, 0, 0, 2}
)

// FCS is appended to frames built with fcs set.
var FCS = []byte{0xde, 0xad, 0xbe, 0xef}

// PackTicks encodes a 31-bit counter into the 32-bit wire field.
func PackTicks(ticks uint32) uint32 {
	return ((ticks >> 7) << 8) | (ticks & 0x7F)
}

// KeyframeFrame builds an Ethernet/IPv4 keyframe carrying the given device
// clock, UTC time and device id.
func KeyframeFrame(t testing.TB, vlan int, clock, utc uint64, device uint16) []byte {
	t.Helper()
	payload := make([]byte, 48)
	binary.BigEndian.PutUint64(payload[0:], clock)
	binary.BigEndian.PutUint64(payload[8:], utc)
	binary.BigEndian.PutUint16(payload[40:], device)

	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocol(253),
		SrcIP:    DeviceIP,
		DstIP:    HostIP,
	}
	return serialize(t, vlan, ip, gopacket.Payload(payload))
}

// DataFrame builds an Ethernet/IPv4/UDP frame whose tick field holds raw.
// With fcs set, four FCS bytes follow the tick field.
func DataFrame(t testing.TB, vlan int, raw uint32, fcs bool) []byte {
	t.Helper()
	payload := make([]byte, 36)
	copy(payload, "hardware timestamped payload")
	binary.BigEndian.PutUint32(payload[len(payload)-4:], raw)

	ip := &layers.IPv4{
		Version:  4,
		TTL:      32,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    HostIP,
		DstIP:    DeviceIP,
	}
	udp := &layers.UDP{SrcPort: 40000, DstPort: 319}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("set network layer: %v", err)
	}
	data := serialize(t, vlan, ip, udp, gopacket.Payload(payload))
	if fcs {
		data = append(data, FCS...)
	}
	return data
}

// TicksFrame is DataFrame for an already unpacked counter value.
func TicksFrame(t testing.TB, vlan int, ticks uint32) []byte {
	t.Helper()
	return DataFrame(t, vlan, PackTicks(ticks), false)
}

func serialize(t testing.TB, vlan int, ip *layers.IPv4, rest ...gopacket.SerializableLayer) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	stack := []gopacket.SerializableLayer{eth}
	if vlan != Untagged {
		eth.EthernetType = layers.EthernetTypeDot1Q
		stack = append(stack, &layers.Dot1Q{VLANIdentifier: uint16(vlan), Type: layers.EthernetTypeIPv4})
	}
	stack = append(stack, ip)
	stack = append(stack, rest...)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, stack...); err != nil {
		t.Fatalf("serialize frame: %v", err)
	}
	return append([]byte(nil), buf.Bytes()...)
}

// Packet is one frame of a synthetic capture.
type Packet struct {
	Time time.Time
	Data []byte
}

// Pcap writes packets into an in-memory Ethernet pcap file.
func Pcap(t testing.TB, packets ...Packet) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := pcapgo.NewWriterNanos(&buf)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("write pcap header: %v", err)
	}
	for _, p := range packets {
		ci := gopacket.CaptureInfo{Timestamp: p.Time, CaptureLength: len(p.Data), Length: len(p.Data)}
		if err := w.WritePacket(ci, p.Data); err != nil {
			t.Fatalf("write pcap packet: %v", err)
		}
	}
	return buf.Bytes()
}
