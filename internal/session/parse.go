package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"voxeledit/internal/models"
)

// parseCoordinates reads an "x,y,z" triple
func parseCoordinates(text string) (models.Coordinates, error) {
	var c models.Coordinates
	parts := strings.Split(text, ",")
	if len(parts) != 3 {
		return c, fmt.Errorf("%w: coordinates %q, expected x,y,z", ErrBadArgument, text)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return c, fmt.Errorf("%w: coordinates %q", ErrBadArgument, text)
		}
		c[i] = n
	}
	return c, nil
}

func parsePoints(args []string) ([]models.Coordinates, error) {
	points := make([]models.Coordinates, 0, len(args))
	for _, a := range args {
		c, err := parseCoordinates(a)
		if err != nil {
			return nil, err
		}
		points = append(points, c)
	}
	return points, nil
}

func floatOpt(opts map[string]string, key string, fallback float64) (float64, error) {
	text, ok := opts[key]
	if !ok {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrBadArgument, key, text)
	}
	return f, nil
}

func boolOpt(opts map[string]string, key string, fallback bool) (bool, error) {
	text, ok := opts[key]
	if !ok {
		return fallback, nil
	}
	b, err := strconv.ParseBool(text)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q", ErrBadArgument, key, text)
	}
	return b, nil
}

// parseWindow reads a "lo:hi" display window
func parseWindow(text string) (lo, hi float64, err error) {
	l, h, found := strings.Cut(text, ":")
	if !found {
		return 0, 0, fmt.Errorf("%w: window %q, expected lo:hi", ErrBadArgument, text)
	}
	if lo, err = strconv.ParseFloat(l, 64); err != nil {
		return 0, 0, fmt.Errorf("%w: window %q", ErrBadArgument, text)
	}
	if hi, err = strconv.ParseFloat(h, 64); err != nil {
		return 0, 0, fmt.Errorf("%w: window %q", ErrBadArgument, text)
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("%w: window %q is reversed", ErrBadArgument, text)
	}
	return lo, hi, nil
}

func ensureDir(file string) error {
	dir := filepath.Dir(file)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating snapshot directory: %w", err)
	}
	return nil
}
