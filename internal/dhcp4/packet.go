package dhcp4

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"

	"github.com/AdguardTeam/golibs/errors"
)

const (
	macAddrLen     = 6
	chaddrFieldLen = 16
	snameLen       = 64
	fileLen        = 128

	chaddrOffset = 28
	snameOffset  = chaddrOffset + chaddrFieldLen // 44
	fileOffset   = snameOffset + snameLen         // 108

	// headerLen is the size, in bytes, of the fixed BOOTP header.
	headerLen = fileOffset + fileLen // 236

	// MinPacketLen is the minimum length of an encoded outgoing packet;
	// [Packet.Encode] zero-pads up to it.
	MinPacketLen = 576
)

// magicCookie is the four bytes separating the fixed header from the
// options region.
var magicCookie = [4]byte{0x63, 0x82, 0x53, 0x63}

// Packet is a decoded DHCPv4/BOOTP packet.
type Packet struct {
	// ChAddr is the client hardware address.  [Parse] guarantees it is
	// exactly 6 bytes long (an Ethernet MAC).
	ChAddr net.HardwareAddr

	SName string
	File  string

	CIAddr netip.Addr
	YIAddr netip.Addr
	SIAddr netip.Addr
	GIAddr netip.Addr

	// Options is the set of options other than DHCPMessageType, which is
	// decoded into MessageType instead.
	Options Options

	Xid uint32

	// MessageType is the decoded value of the DHCPMessageType (53) option,
	// or zero if the packet carries none.
	MessageType MessageType

	Secs  uint16
	Flags uint16

	Op    Op
	HType HType
	HLen  uint8
	Hops  uint8
}

// MAC returns the canonical lower-case colon-separated string form of
// p.ChAddr, suitable for use as an index key.
func (p *Packet) MAC() string {
	return CanonicalMAC(p.ChAddr)
}

// CanonicalMAC renders hw as a lower-case "xx:xx:xx:xx:xx:xx" string.
func CanonicalMAC(hw net.HardwareAddr) string {
	return hw.String()
}

// Parse decodes buf into a [Packet].  It returns an error wrapping one of
// the sentinels in errors.go when buf is malformed: a truncated header, an
// unsupported hardware address type/length, a missing or wrong magic
// cookie, or a truncated option.  A header followed only by zero bytes (the
// padding [Packet.Encode] emits for a packet with no message type and no
// options) is parsed as a packet with no options.
func Parse(buf []byte) (p *Packet, err error) {
	defer func() { err = errors.Annotate(err, "dhcp4: parsing packet: %w") }()

	if len(buf) < headerLen {
		return nil, fmt.Errorf("%w: got %d bytes, want at least %d", ErrTruncatedHeader, len(buf), headerLen)
	}

	p = &Packet{
		Op:     Op(buf[0]),
		HType:  HType(buf[1]),
		HLen:   buf[2],
		Hops:   buf[3],
		Xid:    binary.BigEndian.Uint32(buf[4:8]),
		Secs:   binary.BigEndian.Uint16(buf[8:10]),
		Flags:  binary.BigEndian.Uint16(buf[10:12]),
		CIAddr: netip.AddrFrom4([4]byte(buf[12:16])),
		YIAddr: netip.AddrFrom4([4]byte(buf[16:20])),
		SIAddr: netip.AddrFrom4([4]byte(buf[20:24])),
		GIAddr: netip.AddrFrom4([4]byte(buf[24:28])),
	}

	if p.HType != HTypeEthernet || p.HLen != HLenEthernet {
		return nil, fmt.Errorf("%w: htype %d hlen %d", ErrInvalidHardwareAddr, p.HType, p.HLen)
	}

	p.ChAddr = append(net.HardwareAddr(nil), buf[chaddrOffset:chaddrOffset+macAddrLen]...)
	p.SName = nulTerminated(buf[snameOffset:fileOffset])
	p.File = nulTerminated(buf[fileOffset:headerLen])

	offset := headerLen
	if len(buf) <= offset || len(bytes.TrimRight(buf[offset:], "\x00")) == 0 {
		return p, nil
	}

	if !bytes.Equal(buf[offset:offset+4], magicCookie[:]) {
		return nil, ErrBadMagicCookie
	}
	offset += 4

	for offset < len(buf) {
		code := OptionCode(buf[offset])
		if code == OptionEnd {
			break
		}
		if code == OptionPad {
			offset++
			continue
		}

		if offset+2 > len(buf) {
			return nil, fmt.Errorf("option %d header: %w", code, ErrTruncatedOption)
		}

		n := int(buf[offset+1])
		if offset+2+n > len(buf) {
			return nil, fmt.Errorf("option %d value: %w", code, ErrTruncatedOption)
		}

		value := buf[offset+2 : offset+2+n]
		offset += 2 + n

		if code == OptionDHCPMessageType {
			if n != 1 {
				return nil, fmt.Errorf("option %d: %w: want 1 byte, got %d", code, ErrTruncatedOption, n)
			}

			p.MessageType = MessageType(value[0])

			continue
		}

		p.Options = append(p.Options, Option{Code: code, Value: append([]byte(nil), value...)})
	}

	return p, nil
}

// Encode serializes p into wire form, zero-padded up to [MinPacketLen].  If
// p carries a message type or any options, the magic cookie and a
// terminating End option are appended, with DHCPMessageType always emitted
// first.
func (p *Packet) Encode() []byte {
	size := p.encodedLen()
	if size < MinPacketLen {
		size = MinPacketLen
	}
	buf := make([]byte, size)

	buf[0] = byte(p.Op)
	buf[1] = byte(p.HType)
	buf[2] = byte(p.HLen)
	buf[3] = byte(p.Hops)
	binary.BigEndian.PutUint32(buf[4:8], p.Xid)
	binary.BigEndian.PutUint16(buf[8:10], p.Secs)
	binary.BigEndian.PutUint16(buf[10:12], p.Flags)
	putAddr4(buf[12:16], p.CIAddr)
	putAddr4(buf[16:20], p.YIAddr)
	putAddr4(buf[20:24], p.SIAddr)
	putAddr4(buf[24:28], p.GIAddr)
	copy(buf[chaddrOffset:chaddrOffset+macAddrLen], p.ChAddr)
	copy(buf[snameOffset:fileOffset], p.SName)
	copy(buf[fileOffset:headerLen], p.File)

	if p.MessageType == 0 && len(p.Options) == 0 {
		return buf
	}

	offset := headerLen
	copy(buf[offset:offset+4], magicCookie[:])
	offset += 4

	if p.MessageType != 0 {
		offset += Uint8Option(OptionDHCPMessageType, uint8(p.MessageType)).packInto(buf, offset)
	}

	for _, opt := range p.Options {
		offset += opt.packInto(buf, offset)
	}

	buf[offset] = byte(OptionEnd)

	return buf
}

// encodedLen returns the exact number of bytes p.Encode would need before
// zero-padding to [MinPacketLen].
func (p *Packet) encodedLen() int {
	if p.MessageType == 0 && len(p.Options) == 0 {
		return headerLen
	}

	size := headerLen + len(magicCookie)
	if p.MessageType != 0 {
		size += 3 // code + length + 1 value byte.
	}
	for _, opt := range p.Options {
		size += opt.byteLen()
	}
	size++ // End option.

	return size
}

// Reply builds the OFFER or ACK reply to p, the way the decision engine's
// reply synthesis step does (spec §4.3): xid, chaddr, hops, and giaddr are
// copied from the request; op is set to BOOTREPLY; flags is reset to zero (the client's
// broadcast flag is intentionally discarded, matching the behavior of the
// server this was ported from); siaddr and yiaddr are set from serverAddr
// and offeredAddr.  p.MessageType must be [MessageTypeDiscover] or
// [MessageTypeRequest].
func (p *Packet) Reply(serverAddr, offeredAddr netip.Addr) (reply *Packet, err error) {
	var mt MessageType
	switch p.MessageType {
	case MessageTypeDiscover:
		mt = MessageTypeOffer
	case MessageTypeRequest:
		mt = MessageTypeAck
	default:
		return nil, fmt.Errorf("dhcp4: can only reply to DISCOVER or REQUEST, got %s", p.MessageType)
	}

	return &Packet{
		Op:          OpReply,
		HType:       HTypeEthernet,
		HLen:        HLenEthernet,
		Hops:        p.Hops,
		Xid:         p.Xid,
		ChAddr:      p.ChAddr,
		GIAddr:      p.GIAddr,
		SIAddr:      serverAddr,
		YIAddr:      offeredAddr,
		MessageType: mt,
	}, nil
}

func nulTerminated(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}

	return string(b)
}

func putAddr4(dst []byte, addr netip.Addr) {
	if !addr.IsValid() {
		return
	}

	a4 := addr.As4()
	copy(dst, a4[:])
}
