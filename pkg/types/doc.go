// Package types defines the configuration model and the entity and
// validation engine for ideate domains, together with the backend Config
// and the standard errors shared by the storage and transport layers.
//
// A DomainSpec is parsed once at startup from an attribute-keyed mapping
// (see Parse) and passed explicitly to every component that needs it.
// Entities hold their field values as tagged Values keyed by FieldSpec.Key.
// Nothing in this package performs I/O.
package types
