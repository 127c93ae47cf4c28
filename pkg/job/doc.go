// Package job defines batch analysis jobs: a YAML definition, raw record
// input and the JSON report.
//
// # Overview
//
// A job bundles the processing rules, metric specs and funnel specs that are
// applied to one batch of raw records. Definitions are validated as a whole
// when parsed, so a bad spec fails before any record is read.
//
// # Definition Format
//
//	name: checkout-daily
//	processing:
//	  rename_map: {amt: amount}
//	  coerce: {amount: number}
//	  deduplicate: true
//	metrics:
//	  - name: revenue_by_day
//	    reducer: sum
//	    field: amount
//	    group_by: ["@day"]
//	    filter: {event_name: purchase}
//	funnels:
//	  - name: checkout
//	    window: 3600000
//	    steps:
//	      - event_name: view
//	      - event_name: cart
//	      - event_name: purchase
//	        where: {currency: USD}
//
// # Usage Example
//
//	def, err := job.LoadFile("checkout.yaml")
//	if err != nil {
//		return err
//	}
//	records, err := job.ReadRecordsFile("events.ndjson")
//	if err != nil {
//		return err
//	}
//	report, err := engine.New(engine.DefaultConfig()).Run(ctx, def, records)
//
// # Related Packages
//
//   - pkg/engine: Executes definitions
//   - pkg/cli: Command line entry points
package job
