// Package core provides the business logic of the resident registry.
//
// It is independent of any transport: the web handlers and the admin CLI
// both drive it through [Service], and tests drive it through a fake
// [Store].
//
// # Import sources
//
// Import files are described by a [SourceDefinition] registered at init
// time with [Register]. Each source lists the canonical fields it carries
// and the header aliases it accepts:
//
//	core.Register(core.SourceDefinition{
//	    Key:      "demographic",
//	    Priority: 2,
//	    Fields: []core.FieldSpec{
//	        {Field: core.FieldResidentID, Aliases: []string{"citizen id"}, Required: true},
//	        {Field: core.FieldName},
//	    },
//	})
//
// The sources package registers "health" and "demographic".
//
// # Import
//
//  1. [Service.Import] parses both files concurrently with [OpenTable] and
//     [ParseSource] into lookup tables keyed by resident id.
//  2. [Merge] joins them; the higher priority source (demographic) wins
//     every field it fills and the other fills the gaps.
//  3. [BuildResident] validates each record (UID 12 digits, mobile 10
//     digits) and the mode decides between insert, update and upsert.
//
// # Export
//
// [Service.PrepareExport] takes a job slot and counts the rows;
// [ExportJob.Run] reads keyset-paginated batches and streams them as CSV or
// XLSX while progress frames are written to a progress.Store for polling
// and SSE.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB008: Database errors (duplicates, constraints, connections)
//   - VAL001-VAL005: Validation errors (UID, mobile, dates, missing columns)
//   - FILE001-FILE006: File errors (size, encoding, format)
//   - EXP001-EXP003: Export errors (busy, format, session)
//   - IMP001: Import errors
//   - AUTH001-AUTH002, RES001-RES002: Access and lookup errors
package core
