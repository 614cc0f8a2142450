// collab-demo runs a scripted two-user editing session over the in-memory
// bus and dumps the resulting state.
package main

import (
	"fmt"
	"time"

	"github.com/sanity-io/litter"

	"collabdoc/internal/comments"
	"collabdoc/internal/editor"
	"collabdoc/internal/session"
	"collabdoc/internal/transport"
	"collabdoc/pkg/ot"
)

func main() {
	bus := transport.NewBus()

	aliceStore := session.NewStore()
	bobStore := session.NewStore()

	aliceComments := comments.NewStore(aliceStore)
	aliceStore.Subscribe(aliceComments)

	alice := editor.NewController(aliceStore, bus.Endpoint("demo-doc"), "demo-doc", "alice", "Alice")
	bob := editor.NewController(bobStore, bus.Endpoint("demo-doc"), "demo-doc", "bob", "Bob")

	if err := alice.HandleTextChange("Hello"); err != nil {
		fmt.Println("alice edit failed:", err)
		return
	}
	if err := bob.HandleTextChange("Hi "); err != nil {
		fmt.Println("bob edit failed:", err)
		return
	}
	if err := bob.SetCursor(3, nil); err != nil {
		fmt.Println("bob cursor failed:", err)
		return
	}

	// Let the bus drain.
	time.Sleep(100 * time.Millisecond)

	fmt.Printf("alice sees: %q\n", alice.Content())
	fmt.Printf("bob sees:   %q\n", bob.Content())
	if alice.Content() == bob.Content() {
		fmt.Println("replicas converged")
	} else {
		fmt.Println("replicas diverged")
	}

	c, err := aliceComments.AddComment("demo-doc", "", "alice", "Alice", "greeting could be warmer", "Hello", ot.Range{Start: 0, End: 5})
	if err != nil {
		fmt.Println("comment failed:", err)
		return
	}
	if err := alice.HandleTextChange(">> " + alice.Content()); err != nil {
		fmt.Println("alice edit failed:", err)
		return
	}
	time.Sleep(100 * time.Millisecond)

	shifted, _ := aliceComments.Comment(c.ID)
	fmt.Printf("comment anchor after edit: %d-%d\n", shifted.Anchor.Start, shifted.Anchor.End)

	fmt.Println("search results for \"greeting\":")
	litter.Dump(aliceComments.Search(comments.Filters{Query: "greeting"}))

	fmt.Println("alice's view of cursors:")
	litter.Dump(alice.RemoteCursors())

	_ = alice.Close()
	_ = bob.Close()
}
