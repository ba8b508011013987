// Package wireformat implements the value codec shared by the host and its
// guests.
//
// Values are laid out back to back with no padding and no field names:
// integers and floats are fixed width little-endian, bool is one byte,
// strings, byte strings and sequences carry a u64 length prefix, options a
// one-byte tag, enums a u32 variant index. Tuples, fixed arrays and records
// are their elements in order. The layout matches bincode 1.x with its
// default configuration, which is what the guests link against.
//
// Shapes are written as expressions such as "u32", "seq<option<string>>",
// "tuple<i32,f64>" or "array<u8;16>". Named records and enums are registered
// on a Registry, which also caches the codecs it builds for composite shapes.
package wireformat
