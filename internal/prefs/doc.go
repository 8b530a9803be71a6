// Package prefs provides a flock-guarded JSON preference store shared with
// the host application: last-used export folder, worker settings blob, and
// related toggles.
package prefs
