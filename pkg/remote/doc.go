// Package remote hosts element trees over WebSocket.
//
// Every connection gets a fresh tree from Config.Tree, enabled on the
// engine so its controllers attach when the client loads it. Clients send
// JSON frames:
//
//	{"type":"load"}
//	{"type":"set","element":"title","prop":"text","value":"milk"}
//	{"type":"raise","element":"title","event":"KeyDown","key":"Enter"}
//	{"type":"unload"}
//
// and receive a snapshot of the tree, or an error, after each frame.
// Routes are served with chi: the WebSocket endpoint, /healthz, and
// optionally Prometheus metrics.
package remote
