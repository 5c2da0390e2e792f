// Package registry maps VLAN tags to the logical timestamping device that
// emitted the traffic. A registry is built once before a run and never
// changes afterwards.
package registry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"tickstamp/internal/errs"
)

// Wildcard is the mapping key that attributes all traffic to one device.
const Wildcard = "*"

const maxVLAN = 4095

// Registry resolves data frames to device ids.
type Registry struct {
	wildcard bool
	device   uint16 // the only device in wildcard mode
	vlans    map[uint16]uint16
	devices  map[uint16]struct{}
}

// New builds a registry from a VLAN-id-or-wildcard to device-id mapping.
// It holds either exactly one wildcard entry or only VLAN entries.
func New(mapping map[string]uint16) (*Registry, error) {
	if len(mapping) == 0 {
		return nil, &errs.ConfigError{Reason: "no devices configured", Err: errs.ErrEmptyRegistry}
	}

	r := &Registry{
		vlans:   make(map[uint16]uint16),
		devices: make(map[uint16]struct{}),
	}

	if dev, ok := mapping[Wildcard]; ok {
		if len(mapping) > 1 {
			return nil, &errs.ConfigError{Reason: "wildcard device cannot be combined with vlan mappings"}
		}
		r.wildcard = true
		r.device = dev
		r.devices[dev] = struct{}{}
		return r, nil
	}

	for key, dev := range mapping {
		vlan, err := strconv.ParseUint(strings.TrimSpace(key), 10, 16)
		if err != nil || vlan > maxVLAN {
			return nil, &errs.ConfigError{Reason: fmt.Sprintf("invalid vlan id %q", key)}
		}
		if _, dup := r.vlans[uint16(vlan)]; dup {
			return nil, &errs.ConfigError{Reason: fmt.Sprintf("vlan %d mapped twice", vlan)}
		}
		r.vlans[uint16(vlan)] = dev
		r.devices[dev] = struct{}{}
	}
	return r, nil
}

// Wildcard reports whether all traffic resolves to a single device and
// VLAN tags are ignored.
func (r *Registry) Wildcard() bool {
	return r.wildcard
}

// Resolve returns the device for a data frame's VLAN tag. tagged is false
// for untagged frames.
func (r *Registry) Resolve(vlan uint16, tagged bool) (uint16, error) {
	if r.wildcard {
		return r.device, nil
	}
	if tagged {
		if dev, ok := r.vlans[vlan]; ok {
			return dev, nil
		}
	}
	return 0, &errs.UnconfiguredVlanError{VLAN: vlan, Tagged: tagged}
}

// Known reports whether id is one of the configured devices.
func (r *Registry) Known(id uint16) bool {
	_, ok := r.devices[id]
	return ok
}

// Devices returns the configured device ids in ascending order.
func (r *Registry) Devices() []uint16 {
	out := make([]uint16, 0, len(r.devices))
	for id := range r.devices {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
