package dhcp4

import "github.com/AdguardTeam/golibs/errors"

// Sentinel parse errors.  Use [errors.Is] to match against these; [Parse]
// and the option decoders annotate them with positional context before
// returning.
const (
	// ErrTruncatedHeader is returned when buf is shorter than the fixed
	// 236-byte BOOTP header.
	ErrTruncatedHeader errors.Error = "truncated header"

	// ErrInvalidHardwareAddr is returned when htype is not
	// [HTypeEthernet] or hlen is not [HLenEthernet].
	ErrInvalidHardwareAddr errors.Error = "invalid hardware address type or length"

	// ErrBadMagicCookie is returned when the options region is present but
	// does not begin with the DHCP magic cookie.
	ErrBadMagicCookie errors.Error = "options magic cookie not matched"

	// ErrTruncatedOption is returned when an option's declared length runs
	// past the end of the buffer.
	ErrTruncatedOption errors.Error = "truncated option value"
)
