// Package quote turns a submitted applicant form into a priced, persisted
// quote. It validates the applicant fields, resolves the licence tenure
// bucket, runs the premium calculator (memoised through an optional cache)
// and stores a single applicant row through the injected storage backend.
package quote
