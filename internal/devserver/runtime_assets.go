package devserver

import "peaque.dev/peaque/internal/runtimeassets"

// frameworkAssets holds the framework's own client runtime scripts,
// served at their own URLs (spec §4.E) and shared with
// internal/transform's bundler resolver plugin for static imports of
// the same scripts.
var frameworkAssets = runtimeassets.Assets
