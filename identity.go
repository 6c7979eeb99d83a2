// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package rpmextract

import (
	"errors"
	"fmt"
	"os/user"
	"strconv"
)

// unresolvedID is the id value for "leave as is", the same value the chown
// system call ignores.
const unresolvedID = -1

// resolveOwnership translates the owner and group names of a request into
// numeric ids. Empty names resolve to the ignore value. Names are looked up
// in the system identity databases; an unknown name is reported as an
// [UnknownIdentityError].
func resolveOwnership(owner, group string) (int, int, error) {
	uid, gid := unresolvedID, unresolvedID

	if owner != "" {
		u, err := user.Lookup(owner)
		if err != nil {
			var unknown user.UnknownUserError
			if errors.As(err, &unknown) {
				return 0, 0, &UnknownIdentityError{Kind: "owner", Name: owner}
			}
			return 0, 0, fmt.Errorf("cannot resolve owner %q: %w", owner, err)
		}
		uid, err = strconv.Atoi(u.Uid)
		if err != nil {
			return 0, 0, fmt.Errorf("cannot parse uid %q of owner %q: %w", u.Uid, owner, err)
		}
	}

	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			var unknown user.UnknownGroupError
			if errors.As(err, &unknown) {
				return 0, 0, &UnknownIdentityError{Kind: "group", Name: group}
			}
			return 0, 0, fmt.Errorf("cannot resolve group %q: %w", group, err)
		}
		gid, err = strconv.Atoi(g.Gid)
		if err != nil {
			return 0, 0, fmt.Errorf("cannot parse gid %q of group %q: %w", g.Gid, group, err)
		}
	}

	return uid, gid, nil
}
