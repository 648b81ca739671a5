// Package ui holds the terminal presentation helpers: coloured print
// functions built on lipgloss, a download progress line built on the
// bubbles progress bar, and desktop notifications.
package ui
