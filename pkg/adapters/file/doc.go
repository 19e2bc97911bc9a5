// Package file provides filesystem adapters: a snapshot store writing one JSON file
// per client, and a model source serving diagrams from a directory of YAML or
// JSON files, with change notification.
package file
