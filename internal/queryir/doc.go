// Package queryir describes fetch requests as data: the entity to read, a
// conjunction of field comparisons, sort keys, pagination and the fault and
// distinct flags.
//
// Requests are built from caller-friendly terms. A term key may carry a
// comparison operator after the field name:
//
//	Where("age >=", 18)   // age >= 18
//	Where("age => ", 18)  // "=>" is accepted as an alias for ">="
//	Where("name", "ada")  // no operator: equality
//	Where("email <", nil) // nil always means "email is null"
//
// A key that does not parse as "<field> <op>" is used verbatim as the field
// name with equality. Terms and sort keys keep their input order.
//
// SEALED INTERFACES:
//
// Predicate is sealed using the marker method pattern. Only Comparison and
// And implement it, so backends can switch exhaustively:
//
//	switch p := pred.(type) {
//	case Comparison:
//	case And:
//	}
//
// The same request is executed in two places: compiled to SQL by querysql
// for the root's store, and evaluated in memory by Match and Apply against
// pending records. Both follow SQLite semantics: comparisons against a
// missing value are false, strings compare byte-wise, and NULLs sort first
// ascending and last descending. Every result ends ordered by id so the
// row order is total.
package queryir
