// Package verify probes proxy candidates and keeps the ones that work.
//
// Every candidate is used as a forward proxy twice: once to fetch a
// geolocation document describing its exit address, once to fetch a
// delay-test URL. Candidates that pass both within the timeout and whose
// exit country satisfies the active Zone are returned. At most
// Config.Concurrency candidates are probed at a time.
package verify
