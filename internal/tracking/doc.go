// Package tracking provides the tracked state primitives consumed by the helper engine.
//
// A Cell holds a value and the revision of its last write. Reads performed
// through a Frame are recorded into a dependency set (Deps); a Deps set is
// stale as soon as any member has been written since it was captured.
//
// Example usage:
//
//	store := tracking.NewStore()
//	name := store.Cell("name")
//	name.Set("Tom")
//
//	frame := tracking.NewFrame("greeting")
//	fmt.Println(frame.Read(name)) // Tom
//	deps := frame.Close()
//
//	deps.Stale() // false
//	name.Set("Tom")
//	deps.Stale() // true, revisions are compared, not values
//
// Frames are passed explicitly; there is no ambient "current computation".
package tracking
