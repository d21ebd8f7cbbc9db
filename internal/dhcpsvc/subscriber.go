package dhcpsvc

import (
	"context"
	"strconv"
	"strings"

	"github.com/AdguardTeam/golibs/log"

	"github.com/dhcpsprout/dhcpsprout/internal/store"
)

// defaultChannel is the control store's pub/sub channel name, per spec.md
// §6.
const defaultChannel = "dhcp_control"

// runSubscriber reads notifications (from a store connection already
// LISTEN-ing) and translates each payload into a reconciler task, per
// spec.md §4.6's grammar:
//
//	RELOAD_ITEM <owner_id_decimal>
//	RELOAD_PROFILE <profile_id_decimal>
//	REMOVE_STAGING <mac_lowercase_colon>
//	REMOVE_ACTIVE <mac_lowercase_colon>
//
// Malformed payloads are logged and dropped; the subscriber itself never
// exits on a parse error, only when notifications closes (store connection
// gone) or ctx is canceled.
func (s *Server) runSubscriber(ctx context.Context, notifications <-chan store.Notification) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notifications:
			if !ok {
				return nil
			}

			t, err := parseNotification(n.Payload)
			if err != nil {
				log.Warning("dhcpsvc: subscriber: %s: payload %q", err, n.Payload)

				continue
			}

			s.enqueue(t)
		}
	}
}

func parseNotification(payload string) (task, error) {
	action, arg, ok := strings.Cut(strings.TrimSpace(payload), " ")
	if !ok {
		return nil, errNotificationGrammar
	}

	switch action {
	case "RELOAD_ITEM":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, errNotificationGrammar
		}

		return reloadItemTask{ownerID: id}, nil

	case "RELOAD_PROFILE":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, errNotificationGrammar
		}

		return reloadProfileTask{profileID: id}, nil

	case "REMOVE_STAGING":
		mac, err := normalizeMAC(arg)
		if err != nil {
			return nil, err
		}

		return removeStagingTask{mac: mac}, nil

	case "REMOVE_ACTIVE":
		mac, err := normalizeMAC(arg)
		if err != nil {
			return nil, err
		}

		return removeActiveTask{mac: mac}, nil

	default:
		return nil, errNotificationGrammar
	}
}

func normalizeMAC(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return "", errNotificationGrammar
	}
	for _, p := range parts {
		if len(p) != 2 {
			return "", errNotificationGrammar
		}
		if _, err := strconv.ParseUint(p, 16, 8); err != nil {
			return "", errNotificationGrammar
		}
	}

	return s, nil
}
