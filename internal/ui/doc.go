// Package ui implements the interactive terminal front end of the workflow.
//
// The TUI renders one view per [workflow.Phase]:
//   - SelectingLabels: a checklist over the label catalog (space toggles, enter continues)
//   - SelectingFile and Failed: a path input; enter chooses the file, ctrl+s submits it
//   - Submitting: a spinner while the upload is outstanding
//   - AwaitingCompletion: a progress bar with the estimated status text
//   - Completed: the expected/detected comparison with download, open and restart actions
//
// The [workflow.Machine] owns all session state. The model only forwards user intent to it and
// redraws from [workflow.Snapshot] values. Change notifications arrive on a [Signal], which
// coalesces bursts so the view never falls behind the machine.
package ui
