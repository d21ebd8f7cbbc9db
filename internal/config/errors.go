package config

import "github.com/AdguardTeam/golibs/errors"

// errNoBinds is returned by Load when dhcp.binds is empty or whitespace
// only; a server with no listeners cannot do anything useful.
const errNoBinds errors.Error = "no binds configured"
