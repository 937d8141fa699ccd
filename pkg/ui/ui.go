// Package ui holds the colour scheme shared by help, version and console output.
package ui

import (
	"os"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/fang"
)

// GetFangScheme returns the same light/dark-aware color scheme fang uses.
// The background is probed on stderr since stdout carries hook output.
func GetFangScheme() fang.ColorScheme {
	isDark := lipgloss.HasDarkBackground(os.Stdin, os.Stderr)
	return fang.DefaultColorScheme(lipgloss.LightDark(isDark))
}

// UI layout constants.
const (
	defaultMargin = 2
)

// GetTitleStyle returns the style used for section titles such as the
// "config show" header.
func GetTitleStyle() lipgloss.Style {
	colorScheme := GetFangScheme()

	return lipgloss.NewStyle().
		Bold(true).
		Foreground(colorScheme.QuotedString).
		MarginLeft(defaultMargin)
}
