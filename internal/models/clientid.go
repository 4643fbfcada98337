package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Client identifiers tie traffic counters reported by nodes back to users
// without a lookup. The format "u<id>@panel" is part of the node protocol
// and must stay stable.
const (
	clientPrefix = "u"
	clientSuffix = "@panel"
)

// ClientEmail encodes a user id as the identifier handed to nodes.
func ClientEmail(userID int64) string {
	return fmt.Sprintf("%s%d%s", clientPrefix, userID, clientSuffix)
}

// ParseClientEmail decodes an identifier back to a user id. The parse is
// strict: exact prefix and suffix, all-digit positive id. Anything else is
// rejected so a stale or hostile report cannot be attributed to an
// arbitrary user.
func ParseClientEmail(email string) (int64, bool) {
	if !strings.HasPrefix(email, clientPrefix) || !strings.HasSuffix(email, clientSuffix) {
		return 0, false
	}
	digits := email[len(clientPrefix) : len(email)-len(clientSuffix)]
	if digits == "" || digits[0] == '0' {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
