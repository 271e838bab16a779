// Package ir provides the value and schema types shared by every objgraph layer.
//
// This package contains type definitions and pure encoding helpers only. All
// other internal packages import ir; ir imports nothing internal, so it stays
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - field values are int64, string, bool, lists
//     and objects, so payload encoding and comparisons stay deterministic
//   - Record payloads are stored as canonical JSON (sorted keys, NFC strings,
//     no HTML escaping); equal payloads are byte-identical
//   - Object identifiers are opaque strings assigned once at insert time
//   - All JSON tags use snake_case
package ir
