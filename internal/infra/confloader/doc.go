// Package confloader loads layered configuration with koanf.
//
// Sources, lowest to highest priority:
//
//  1. Defaults (a flat key map, usually derived from the default struct)
//  2. A YAML file
//  3. Environment variables (KVMESH_SECTION_KEY)
//  4. Overrides (command-line flags)
//
// Watcher reports writes to the configuration file so callers can apply
// the settings that support hot reload.
package confloader
