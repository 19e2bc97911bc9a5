// Package layout decides when server-side layout runs and ships two simple engines.
package layout
