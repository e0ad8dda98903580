//go:build debug

package world

const debugBuild = true
