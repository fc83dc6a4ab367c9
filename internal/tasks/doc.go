// Package tasks contains the background workflows that keep the local
// library current: token lifecycle management, catalog resolution of
// played tracks, incremental history syncing, and the periodic scheduler
// that drives all connected users.
package tasks
