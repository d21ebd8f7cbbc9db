package dhcp4

import (
	"encoding/binary"
	"fmt"
	"net/netip"
)

// Option is a single decoded type-length-value option.  Value holds the raw
// encoded bytes; codes this package does not give special treatment to are
// kept exactly as received, which is what makes the codec round-trip
// property hold for options this package has never heard of.
type Option struct {
	Code  OptionCode
	Value []byte
}

// byteLen returns the number of bytes Option occupies on the wire.
func (o Option) byteLen() int {
	return 2 + len(o.Value)
}

// packInto writes the TLV encoding of o into buf at offset and returns the
// number of bytes written.
func (o Option) packInto(buf []byte, offset int) int {
	buf[offset] = byte(o.Code)
	buf[offset+1] = byte(len(o.Value))
	copy(buf[offset+2:], o.Value)

	return o.byteLen()
}

// Options is an ordered list of options, in the order they were parsed or
// will be encoded.
type Options []Option

// Get returns the first option with the given code, if any.
func (opts Options) Get(code OptionCode) (opt Option, ok bool) {
	for _, o := range opts {
		if o.Code == code {
			return o, true
		}
	}

	return Option{}, false
}

// Add appends a new option carrying raw bytes already in wire form.  Most
// callers should prefer the typed constructors below (IPOption,
// IPListOption, Uint32Option, and so on), which build the wire form from a
// typed value.
func (opts *Options) Add(code OptionCode, value []byte) {
	*opts = append(*opts, Option{Code: code, Value: value})
}

// IPOption returns an [Option] encoding a single IPv4 address, matching the
// wire form the original source's enc.ip_address produces.  ip must be a
// valid IPv4 address.
func IPOption(code OptionCode, ip netip.Addr) (opt Option) {
	a4 := ip.As4()

	return Option{Code: code, Value: a4[:]}
}

// IPListOption returns an [Option] encoding an ordered list of IPv4
// addresses, one after another, four bytes each.
func IPListOption(code OptionCode, ips []netip.Addr) (opt Option) {
	value := make([]byte, 0, 4*len(ips))
	for _, ip := range ips {
		a4 := ip.As4()
		value = append(value, a4[:]...)
	}

	return Option{Code: code, Value: value}
}

// Uint32Option returns an [Option] encoding a big-endian uint32, used for
// IPaddressLeaseTime (51), RenewalTime (58), and RebindingTime (59).
func Uint32Option(code OptionCode, v uint32) (opt Option) {
	value := make([]byte, 4)
	binary.BigEndian.PutUint32(value, v)

	return Option{Code: code, Value: value}
}

// Uint8Option returns an [Option] encoding a single byte, used for
// DHCPMessageType (53).
func Uint8Option(code OptionCode, v uint8) (opt Option) {
	return Option{Code: code, Value: []byte{v}}
}

// StringOption returns an [Option] encoding a UTF-8 string, used for
// HostName (12).
func StringOption(code OptionCode, s string) (opt Option) {
	return Option{Code: code, Value: []byte(s)}
}

// IPValue decodes opt as a single IPv4 address.
func (o Option) IPValue() (ip netip.Addr, err error) {
	if len(o.Value) != 4 {
		return netip.Addr{}, fmt.Errorf("option %d: %w: want 4 bytes, got %d", o.Code, ErrTruncatedOption, len(o.Value))
	}

	return netip.AddrFrom4([4]byte(o.Value)), nil
}

// IPListValue decodes opt as an ordered list of IPv4 addresses.
func (o Option) IPListValue() (ips []netip.Addr, err error) {
	if len(o.Value)%4 != 0 {
		return nil, fmt.Errorf("option %d: %w: length %d not a multiple of 4", o.Code, ErrTruncatedOption, len(o.Value))
	}

	ips = make([]netip.Addr, 0, len(o.Value)/4)
	for i := 0; i < len(o.Value); i += 4 {
		ips = append(ips, netip.AddrFrom4([4]byte(o.Value[i:i+4])))
	}

	return ips, nil
}

// Uint32Value decodes opt as a big-endian uint32.
func (o Option) Uint32Value() (v uint32, err error) {
	if len(o.Value) != 4 {
		return 0, fmt.Errorf("option %d: %w: want 4 bytes, got %d", o.Code, ErrTruncatedOption, len(o.Value))
	}

	return binary.BigEndian.Uint32(o.Value), nil
}

// ParameterRequestListValue decodes opt as a list of requested option
// codes, for the ParameterRequestList (55) option.
func (o Option) ParameterRequestListValue() (codes []OptionCode) {
	codes = make([]OptionCode, len(o.Value))
	for i, b := range o.Value {
		codes[i] = OptionCode(b)
	}

	return codes
}

// AgentSubOption is a single sub-option nested inside option 82.
type AgentSubOption struct {
	Code  AgentSubOptionCode
	Value []byte
}

// AgentInformationValue decodes opt, the raw value of option 82, as a
// sequence of nested TLV sub-options.  Unlike the Python original this
// package was ported from (see DESIGN.md), the walk correctly advances past
// each sub-option instead of retrying the same offset forever.
func (o Option) AgentInformationValue() (subs []AgentSubOption, err error) {
	buf := o.Value
	offset := 0
	for offset < len(buf) {
		if offset+2 > len(buf) {
			return nil, fmt.Errorf("agent information sub-option: %w", ErrTruncatedOption)
		}

		code := AgentSubOptionCode(buf[offset])
		n := int(buf[offset+1])
		if offset+2+n > len(buf) {
			return nil, fmt.Errorf("agent information sub-option %d: %w", code, ErrTruncatedOption)
		}

		value := buf[offset+2 : offset+2+n]
		subs = append(subs, AgentSubOption{Code: code, Value: value})

		offset += 2 + n
	}

	return subs, nil
}

// CircuitID returns the CircuitID (1) sub-option value of subs, if present.
func CircuitID(subs []AgentSubOption) (id []byte, ok bool) {
	for _, s := range subs {
		if s.Code == AgentSubOptionCircuitID {
			return s.Value, true
		}
	}

	return nil, false
}

// RemoteID returns the RemoteID (2) sub-option value of subs, if present.
func RemoteID(subs []AgentSubOption) (id []byte, ok bool) {
	for _, s := range subs {
		if s.Code == AgentSubOptionRemoteID {
			return s.Value, true
		}
	}

	return nil, false
}
