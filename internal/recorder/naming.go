package recorder

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	timestampLayout = "2006.01.02_15-04-05"
	rawSuffix       = "_flv.mp4"
)

// OutputPath builds <dir>/<prefix>_<account>_<YYYY.MM.DD_HH-MM-SS>_flv.mp4.
func OutputPath(dir, prefix, account string, startedAt time.Time) string {
	name := fmt.Sprintf("%s_%s_%s%s", prefix, sanitizeName(account), startedAt.Format(timestampLayout), rawSuffix)
	return filepath.Join(dir, name)
}

// ConvertedPath maps a raw recording path to its remuxed counterpart.
func ConvertedPath(rawPath string) string {
	if strings.HasSuffix(rawPath, rawSuffix) {
		return strings.TrimSuffix(rawPath, rawSuffix) + ".mp4"
	}
	ext := filepath.Ext(rawPath)
	return strings.TrimSuffix(rawPath, ext) + "_remux.mp4"
}

// NumberedPath returns path for n <= 1 and otherwise inserts _<n> before
// the raw suffix (or extension), so ConvertedPath still recognises it.
func NumberedPath(path string, n int) string {
	if n <= 1 {
		return path
	}
	suffix := rawSuffix
	if !strings.HasSuffix(path, rawSuffix) {
		suffix = filepath.Ext(path)
	}
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(path, suffix), n, suffix)
}

// sanitizeName keeps account names from escaping the output directory.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '-'
		}
		return r
	}, name)
}
