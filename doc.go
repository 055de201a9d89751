// Package ardw renders a printed circuit board and its schematic side by side
// and keeps every view of them in sync.
//
// An [App] owns three surfaces: the front and back of the board layout and the
// current schematic sheet. Each surface has its own [Transform] (pan, zoom,
// fit scale, rotation and mirroring) and two rasters: a background holding the
// static board geometry and a highlight overlay holding only the selected
// entity. Changing the selection redraws the overlays and never touches the
// backgrounds.
//
// # Quick start
//
//	board, err := ardw.LoadBoard("pcbdata.json")
//	// ...
//	sch, err := ardw.LoadSchematic("schdata.json")
//	// ...
//	app, err := ardw.NewApp(board, sch, ardw.WithSettings(cfg.Settings))
//	// ...
//	ardw.Run(app, ardw.RunConfig{Title: "ardw", Width: 1280, Height: 800})
//
// # Events
//
// All input goes through one function, [App.Dispatch], which takes a typed
// [Event] addressed to a surface. Pointer events drive the gesture state
// machine (pan, pinch, tap to pick, two finger tap to reset) and wheel events
// zoom around the cursor. Events are processed one at a time, to completion.
//
// # Synchronization
//
// Selection changes made locally are sent to peers through a [Sender]. Messages
// from peers ([SelectionMessage], [ProjectorModeMessage],
// [ProjectorAdjustMessage], [TrackingMessage]) are queued with [App.Post] from
// any goroutine and applied in arrival order by [App.Pump] on the interaction
// goroutine. The relay sub-package implements the hub that peers connect to.
//
// [Run] opens an Ebitengine window, polls mouse, touch and wheel input into
// events and composites the surface rasters each frame.
package ardw
