// Package protocol implements the binary wire format shared by game
// clients and servers: fixed little-endian and variable-width integer
// encodings, a cursor-based reader/writer pair, the typed packet codec
// contract with its ID registry, and the batch envelope pipeline that
// compresses, encrypts and frames packets for a transport.
package protocol
