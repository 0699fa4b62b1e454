// Package property describes the typed fields of a model.
//
// A Property carries a field's name, storage column, Type and flags (key,
// serial, lazy, nullable) plus the tracking policy used to remember the value
// it was loaded with. A Set is the ordered collection of properties a model
// exposes in one repository.
//
// # Types
//
// Built-in types cast incoming values to a fixed Go representation:
//
//   - String, Text: string (Text is lazy by default)
//   - Integer, Serial: int64 (Serial implies key and serial)
//   - Float: float64
//   - Boolean: bool
//   - DateTime: time.Time
//   - Decimal: decimal.Decimal
//   - UUID: uuid.UUID
//   - Binary: []byte
//   - Object: any value, unchanged
//
// Custom types (Discriminator, JSON, or any CustomType registered with
// Register) convert stored values themselves through Load and Dump.
//
// # Tracking
//
//	p := property.New("tags", property.JSON, property.Tracked(property.TrackHash))
//
// TrackHash remembers a content hash of the loaded value, TrackLoad remembers
// the loaded value itself and TrackNone remembers nothing until the attribute
// is assigned.
package property
