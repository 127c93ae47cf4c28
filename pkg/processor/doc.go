// Package processor turns raw record batches into canonical event batches.
//
// # Overview
//
// Every record is validated independently. Accepted events are transformed by
// the configured rules and sorted into an events.Batch; rejected records are
// collected as ValidationErrors carrying their input index. Processing never
// aborts because of a single bad record.
//
// # Transformation Rules
//
// Rules are applied in a fixed order after validation:
//
//  1. RenameMap renames property keys
//  2. Coerce converts property values to a target kind
//  3. DropUnknownProperties removes keys not listed in KnownProperties
//
// Deduplication is opt-in. Two events are duplicates when subject, name,
// timestamp and all properties are equal; the first one in canonical order is
// kept and the number removed is reported.
//
// # Usage Example
//
//	p := processor.New(&processor.Config{
//		RenameMap:   map[string]string{"amt": "amount"},
//		Coerce:      map[string]events.Kind{"amount": events.KindNumber},
//		Deduplicate: true,
//		Workers:     4,
//	})
//
//	res := p.Process(records)
//	for _, verr := range res.Errors {
//		log.Printf("rejected %v", verr)
//	}
//	fmt.Println(res.Events.Len(), res.Duplicates)
//
// # Related Packages
//
//   - pkg/events: Event model and validator
//   - pkg/engine: Library entry points wrapping the processor
package processor
