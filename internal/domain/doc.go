// Package domain models U.S. border crossing entry data and its per-port aggregation.
//
// # Data Source
//
// Records come from the Bureau of Transportation Statistics "Border Crossing
// Entry Data" dataset, published on the DOT Socrata portal at
// https://data.transportation.gov/api/views/keg4-3bc2. The rows.json export is
// a single JSON document whose "data" member is an array of rows; each row is
// itself an array of cells, not a keyed object.
//
// # Row Layout
//
// Cells 0-7 carry Socrata bookkeeping (sid, id, position, created/updated
// stamps, meta) and are ignored. The consumed cells are:
//
//	 8  Port Name     "Calexico East"
//	 9  State         "California"
//	10  Port Code     "2507"
//	11  Border        "US-Mexico Border"
//	12  Date          "2024-01-01T00:00:00" (floating timestamp, month granularity)
//	13  Measure       "Trucks", "Personal Vehicle Passengers", ...
//	14  Value         "34447" (count, as text)
//	15  Latitude      "32.673"
//	16  Longitude     "-115.388"
//
// The offsets live in one place, [Row.UnmarshalJSON]. If upstream reorders the
// columns, aggregation degrades silently (rows get skipped) rather than failing.
//
// # Leniency
//
// The dataset is third-party and uncurated, so rows are normalized rather than
// rejected:
//
//	empty port name              row skipped
//	unparseable/out-of-range date row skipped (window is 2020–2025)
//	unparseable value            counted as 0
//	port total of 0              port left out of the result
//	later rows with other coords first coordinates kept
//
// # Port Identity
//
// A port is identified by "name|state|border". The same port name can appear
// on both borders in different states, so the name alone is not unique.
package domain
