// Package rate throttles failed logins of the reference server.
//
// Counters are fixed windows: INCR, plus EXPIRE on the first hit. Keys are
// <prefix>:u:<username> and, with PerIP, <prefix>:ip:<addr>.
package rate
