// Package diagnostics starts the gops agent in builds tagged with gops
package diagnostics
