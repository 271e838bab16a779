package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainSchema  = "objgraph/schema/v1"
	DomainPayload = "objgraph/payload/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SchemaHash fingerprints a set of entity specs. Stores persist it to
// detect model changes when they are reopened.
func SchemaHash(entities []EntitySpec) (string, error) {
	list := make(IRArray, 0, len(entities))
	for _, e := range entities {
		fields := make(IRArray, 0, len(e.Fields))
		for _, f := range e.Fields {
			fields = append(fields, IRObject{
				"name":     IRString(f.Name),
				"type":     IRString(f.Type),
				"optional": IRBool(f.Optional),
			})
		}
		list = append(list, IRObject{
			"name":   IRString(e.Name),
			"fields": fields,
		})
	}
	canonical, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("SchemaHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSchema, canonical), nil
}

// PayloadHash fingerprints a record's entity and canonical payload.
// Two records with equal hashes carry identical field values.
func PayloadHash(entity string, payload []byte) string {
	data := make([]byte, 0, len(entity)+1+len(payload))
	data = append(data, entity...)
	data = append(data, 0x00)
	data = append(data, payload...)
	return hashWithDomain(DomainPayload, data)
}
