// Package codec converts action messages to and from their JSON wire form.
//
// A message travels as
//
//	{"clientId": "c1", "action": {"kind": "setModel", "newRoot": {...}}}
//
// The "kind" field selects the concrete action type. Kinds without a registered
// type decode into *domain.GenericAction so extension handlers can still read them.
package codec
