// Package task runs one registered hook by name and reports the outcome as a
// Result. Hook failures are returned as data (Succeeded=false with an exit
// code); only an unknown task name is returned as an error.
package task
