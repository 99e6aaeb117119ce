package lookaside

import (
	"strconv"

	"github.com/lookasidecache/lookaside/internal/hostid"
)

// buildKeySuffix computes the key-split suffix once at construction, per
// spec: empty when keySplitSize <= 1, otherwise ":ks" followed by
// hostID % keySplitSize.
func buildKeySuffix(keySplitSize int, hostID func() uint64) string {
	if keySplitSize <= 1 {
		return ""
	}
	id := hostid.Get()
	if hostID != nil {
		id = hostID()
	}
	return ":ks" + strconv.FormatUint(id%uint64(keySplitSize), 10)
}

// composeKey assembles the final cache key: prefix || logical key || suffix.
func composeKey(prefix, logicalKey, suffix string) string {
	return prefix + logicalKey + suffix
}
