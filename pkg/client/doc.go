// Package client is the Go SDK for the iamd HTTP API.
//
// It reads and publishes IAM packets on a stream served by an iamd node.
//
// # Reading a stream position
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := c.Read(ctx, "weather", 42)
//	for _, p := range res.Packets {
//	    fmt.Println(string(p.Message))
//	}
//
// Every packet returned has already been reassembled from its fragments and
// validated against the stream's key by the node.
//
// # Publishing
//
// Publishing requires a node started with a stream key:
//
//	pub, err := c.Publish(ctx, "weather", 43, map[string]any{"temp": 21})
//	if errors.Is(err, client.ErrPacketTooLarge) {
//	    // the message does not fit into the fragment limit
//	}
//	fmt.Println(pub.Root, pub.Fragments)
//
// # Addresses
//
// Address returns the tangle address a position maps to, without reading:
//
//	addr, err := c.Address(ctx, "weather", 42)
package client
