// Package condition implements the expected-failure condition language of
// suite declarations: a generic All/Any tree over leaf conditions, and the
// AnyOneOf wildcard-or-set constraint used inside leaves.
package condition
