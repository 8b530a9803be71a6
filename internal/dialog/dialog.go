package dialog

import "context"

// Chooser obtains an export destination folder from the user. Implementations
// wrap a native folder dialog; ChooseFolder returns "" with a nil error when
// the user cancels.
//
// Keyboard and pointer input policies must be suspended while the native
// dialog is up; callers bracket ChooseFolder with the policy calls and are
// responsible for restoring on every exit path.
type Chooser interface {
	ChooseFolder(ctx context.Context, seedPath string) (string, error)
	SuspendInputPolicies()
	RestoreInputPolicies()
}

// ScriptedChooser answers every request with a fixed result. Used by the CLI
// (where the destination arrives as a flag) and by tests.
type ScriptedChooser struct {
	Folder string
	Err    error

	Suspended int
	Restored  int
}

// NewScriptedChooser returns a chooser that always picks folder.
func NewScriptedChooser(folder string) *ScriptedChooser {
	return &ScriptedChooser{Folder: folder}
}

func (s *ScriptedChooser) ChooseFolder(_ context.Context, _ string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.Folder, nil
}

func (s *ScriptedChooser) SuspendInputPolicies() { s.Suspended++ }

func (s *ScriptedChooser) RestoreInputPolicies() { s.Restored++ }
