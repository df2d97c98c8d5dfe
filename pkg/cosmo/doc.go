// Package cosmo provides a lightweight client for the Cosmo document
// datastore. Records live in named datasets and are addressed over HTTP as
// /{dataset} (listing, create) and /{dataset}/{id} (fetch, replace, delete).
// Every request carries the Ontology-Subject header identifying the caller.
//
// The Client hands out one Collection per dataset and one Doc per record.
// All operations log failures and return them to the caller; a nil value is
// never returned together with a nil error for Add. Typed helpers (List, Add,
// Get, Set) decode records into caller-supplied types.
package cosmo
