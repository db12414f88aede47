// Package watcher polls the pingbot query surface and logs what it sees.
package watcher
