package parser

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"tickstamp/internal/errs"
)

// vlanTag extracts the outer 802.1Q tag. An untagged Ethernet frame is not
// an error; a frame announcing a tag that cannot be decoded is.
func vlanTag(pkt gopacket.Packet) (vlan uint16, tagged bool, err error) {
	if dot1q, ok := pkt.Layer(layers.LayerTypeDot1Q).(*layers.Dot1Q); ok {
		return dot1q.VLANIdentifier, true, nil
	}

	eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !ok {
		if errLayer := pkt.ErrorLayer(); errLayer != nil {
			return 0, false, fmt.Errorf("decode link layer: %v: %w", errLayer.Error(), errs.ErrMalformedFrame)
		}
		return 0, false, fmt.Errorf("no ethernet header: %w", errs.ErrMalformedFrame)
	}
	if eth.EthernetType == layers.EthernetTypeDot1Q || eth.EthernetType == layers.EthernetTypeQinQ {
		return 0, false, fmt.Errorf("truncated 802.1Q header: %w", errs.ErrMalformedFrame)
	}
	return 0, false, nil
}

// sourceAddr returns the network-layer source address, if any.
func sourceAddr(pkt gopacket.Packet) string {
	if ip4, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		return ip4.SrcIP.String()
	}
	if ip6, ok := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6); ok {
		return ip6.SrcIP.String()
	}
	return ""
}
