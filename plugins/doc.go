// Package plugins hosts the lab plugins. Each subpackage parses the raw
// files of one laboratory into archive sections and reaches the ingest host
// only through pkg/pluginapi.
//
// plugins/testhelper runs parsers against an in-memory pluginapi.Context in
// tests; production plugin code must not import it.
package plugins
