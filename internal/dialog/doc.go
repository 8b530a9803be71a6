// Package dialog abstracts the folder-chooser and input-policy collaborator
// the export coordinator depends on.
package dialog
