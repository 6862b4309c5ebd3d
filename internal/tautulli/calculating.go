package tautulli

import "strings"

// IndicatesCalculating reports whether a media info response signals that
// Tautulli is still calculating file sizes for the section. True when the
// message says so explicitly, or when a section reports items but a zero
// aggregate size. The zero-size heuristic can false-positive on a section
// that legitimately holds nothing with a size; Tautulli gives no way to tell
// the two apart, so the approximation stands.
func (e *MediaInfoEnvelope) IndicatesCalculating() bool {
	if e == nil {
		return false
	}
	if messageMentionsCalculating(e.Message) {
		return true
	}
	return e.Result == "success" && e.Data.RecordsTotal > 0 && e.Data.TotalFileSize == 0
}

// ErrorIndicatesCalculating reports whether a failed section fetch was caused
// by the file-size calculation still running. Such a failure contributes the
// transient flag even though the section yields no items.
func ErrorIndicatesCalculating(err error) bool {
	if err == nil {
		return false
	}
	return messageMentionsCalculating(err.Error())
}

func messageMentionsCalculating(msg string) bool {
	s := strings.ToLower(msg)
	if !strings.Contains(s, "calculating") {
		return false
	}
	return strings.Contains(s, "file size") || strings.Contains(s, "file sizes") || strings.Contains(s, "filesize")
}
