// Package common defines sentinel errors and small helpers shared by the
// cdnkeeper packages. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Lookup errors.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration marks a required credential or setting that is
	// absent from every configured source.
	ErrConfiguration = errors.New("configuration error")

	// ErrSigning marks malformed key material or an unsignable policy.
	ErrSigning = errors.New("signing error")

	// ErrInvalidTransition marks a storage-class change that is not allowed.
	ErrInvalidTransition = errors.New("invalid storage class transition")

	// ErrRemoteService marks a failed call to the object store or the CDN.
	ErrRemoteService = errors.New("remote service error")
)
