package mailmsg

import "fmt"

// Boundary derives the multipart boundary string from a message's stable
// BlockID, matching write_normal_email's "--boundary-LibPST-iamunique-%llu_-_-"
// format (readpst.c L1742-ish). Deriving it from BlockID instead of a clock
// or random source is what makes output reproducible across runs.
func Boundary(blockID uint64) string {
	return fmt.Sprintf("boundary-LibPST-iamunique-%d_-_-", blockID)
}

// AltBoundary derives the nested multipart/alternative boundary used when a
// message carries both a plain and an HTML body, matching the "alt-" prefix
// readpst.c prepends to the outer boundary for the inner part.
func AltBoundary(blockID uint64) string {
	return "alt-" + Boundary(blockID)
}

// ReportBoundary derives a "report-"-prefixed boundary from blockID. Render
// does not use it: the report_text part of a multipart/report message is
// written inside the outer Boundary(blockID).
func ReportBoundary(blockID uint64) string {
	return "report-" + Boundary(blockID)
}
