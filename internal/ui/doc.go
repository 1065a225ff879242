// Package ui implements the `generate --tui` terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through three views:
//  1. [ConfirmView] : Review the generation request
//  2. [GenerateView] : Spinner and phase text fed by the generator's progress channel
//  3. [ResultView] : Playlist link and a browsable list of the tracks that went into it
//
// The [Model] implements the standard Init/Update/View pattern, receiving messages via the [Msg] union type.
// Progress updates are read one at a time from the channel handed to [tasks.Generator.Generate], and the
// final outcome arrives as a single completion message once the channel closes.
package ui
