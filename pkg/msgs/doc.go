// Package msgs defines the wire messages published by bridges.
package msgs

// Every payload travels in a Typed envelope carrying a type ID and the
// encoded message, so a subscriber decodes any topic without knowing in
// advance what it carries. Messages are protobuf-encoded.
//
// Producer: bridge (cmd/uartbridge, cmd/ppsh)
// Consumer: monitors (cmd/ppmon) and browser clients
