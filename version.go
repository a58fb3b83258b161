// Package loadship forwards hierarchical load-test sample results to an
// Elasticsearch bulk endpoint. The implementation lives under internal/;
// this package only carries release metadata.
package loadship

// Version is the loadship release version.
const Version = "v0.1.0"
