// Package config builds the runtime settings for cdnkeeper.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. The credential provider (see package secrets), using the same keys
//     the deployment has always used: S3_STATIC_FILES_BUCKET_NAME,
//     STATICFILES_LOCATION, CF_STATIC_DISTRO_ID and so on.
//  3. Command-line flags registered with RegisterFlags; only flags that
//     were actually set on the command line override earlier values.
//
// The resulting Config is constructed once at startup and handed to every
// component explicitly.
package config
