// Package schema compiles CUE entity models into the registry the managed
// contexts resolve entity names against.
//
// A model source declares entities under the top-level "entity" struct:
//
//	entity: Person: fields: {
//		name:   string
//		age?:   int
//		owner?: string @ref(Person)
//		full:   string @rename(fullname)
//	}
//
// Several sources may describe the same model; they are unified into one
// value before compilation, so two sources can each contribute fields to an
// entity as long as they agree on shared field types.
//
// Field kinds map to ir.FieldType: string, int, bool, lists and structs.
// Floats are rejected. "?" marks a field optional. @ref marks a string field
// holding another record's identifier. @rename names the field a previous
// model version stored the value under, which lets migrations carry data
// across the rename.
package schema
