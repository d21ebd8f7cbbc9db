package dhcpsvc

import "github.com/AdguardTeam/golibs/errors"

// errNotificationGrammar is returned when a pub/sub payload does not match
// the grammar of spec.md §6 (unknown action, non-decimal id, or a
// malformed MAC argument). The subscriber logs and drops the payload;
// this error never escapes the package.
const errNotificationGrammar errors.Error = "malformed notification payload"
