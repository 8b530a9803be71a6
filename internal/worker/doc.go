// Package worker supervises the connection to the external rendering worker:
// port discovery through the preference store, the enable-and-connect
// handshake with its single retry, and the websocket render transport.
package worker
