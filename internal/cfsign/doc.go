// Package cfsign produces CloudFront signed URLs for private resources.
//
// A URL is authorised by a policy statement that names exactly one
// resource, https://{bucket}/{key}, and an expiry. The policy is signed
// with the distribution's RSA key using PKCS#1 v1.5 over SHA-1, which is
// what CloudFront verifies, and the signature travels in the query string
// together with the key-pair id:
//
//	https://d-private.example.com/docs/a.pdf?Expires=1700000000&Signature=...&Key-Pair-Id=K2JCJMDEHXQW5F
//
// Canned policies carry only the expiry and are referenced by Expires;
// custom policies may add a source IP range and a start time and are
// embedded as a Policy parameter.
package cfsign
