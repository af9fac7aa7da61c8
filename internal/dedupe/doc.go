// Package dedupe provides a bounded, time-windowed set that answers "is this
// the first time we have seen this key lately". The transport uses it so a
// burst of 401 responses for one credential clears the session only once.
package dedupe
