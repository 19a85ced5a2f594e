// Package objectstore persists published artifacts.
//
// The filesystem backend keeps objects below a root directory and refuses
// keys that would escape it. The S3 backend uses aws-sdk-go and returns
// virtual-hosted URLs so downstream consumers can locate objects by bucket
// and key alone.
package objectstore
