// Package decoder turns encoded image bytes into images sized for display.
package decoder
