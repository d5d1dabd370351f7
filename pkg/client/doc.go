// Package client is a Go client for kvmesh servers.
//
// A Client owns one connection. Calls are serialized; GetWhen blocks until
// the server sends its terminal response, so responses never have to be
// matched to requests.
//
//	c, err := client.Dial(ctx, "127.0.0.1:11111")
//	if err != nil { ... }
//	defer c.Close()
//	if err := c.Login(ctx, "alice", "secret"); err != nil { ... }
//	err = c.Put(ctx, "greeting", []byte("hello"))
package client
