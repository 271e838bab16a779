package pebblestore

import "github.com/roach88/objgraph/internal/ir"

var (
	modelKey     = []byte("m/model")
	entityPrefix = []byte("e/")
)

func recordKey(id ir.ObjectID) []byte {
	return append([]byte("r/"), string(id)...)
}

func entityLower(entity string) []byte {
	k := append([]byte(nil), entityPrefix...)
	k = append(k, entity...)
	return append(k, 0)
}

// entityUpper is the exclusive bound of one entity's range.
func entityUpper(entity string) []byte {
	k := entityLower(entity)
	k[len(k)-1] = 1
	return k
}

func payloadKey(entity string, id ir.ObjectID) []byte {
	return append(entityLower(entity), string(id)...)
}

// splitPayloadKey returns the entity and id encoded in an e/ key.
func splitPayloadKey(key []byte) (entity string, id ir.ObjectID, ok bool) {
	if len(key) <= len(entityPrefix) {
		return "", "", false
	}
	rest := key[len(entityPrefix):]
	for i, b := range rest {
		if b == 0 {
			return string(rest[:i]), ir.ObjectID(rest[i+1:]), true
		}
	}
	return "", "", false
}
