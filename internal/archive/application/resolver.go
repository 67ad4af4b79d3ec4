package application

import (
	"strings"
)

// CandidateNames lists the filenames a print job may be stored under on
// the printer, most specific first. Printers report jobs under the
// subtask label while the file on disk carries a ".gcode.3mf" or ".3mf"
// suffix, so both spellings are tried for each base name. Reported
// names can arrive path-qualified (firmware reports sliced jobs as
// "/data/Metadata/plate_1.gcode"); only the last segment names the file.
func CandidateNames(reportedName, subtaskName string) []string {
	var names []string
	if subtaskName != "" {
		names = append(names, subtaskName+".gcode.3mf", subtaskName+".3mf")
	}

	reportedName = lastSegment(reportedName)
	if reportedName != "" {
		switch {
		case strings.HasSuffix(reportedName, ".3mf"):
			names = append(names, reportedName)
		case strings.HasSuffix(reportedName, ".gcode"):
			base := strings.TrimSuffix(reportedName, ".gcode")
			names = append(names, base+".gcode.3mf", base+".3mf")
		default:
			names = append(names, reportedName+".gcode.3mf", reportedName+".3mf")
		}
	}

	return dedupe(names)
}

// RemotePaths lists the printer storage locations to try for a
// candidate name, in probe order.
func RemotePaths(name string) []string {
	return []string{
		"/" + name,
		"/cache/" + name,
		"/model/" + name,
		"/data/" + name,
	}
}

// SearchTerm derives the substring used to scan a directory listing
// when no candidate name matched. The subtask label wins over the
// reported filename when both are present.
func SearchTerm(reportedName, subtaskName string) string {
	term := lastSegment(reportedName)
	if subtaskName != "" {
		term = subtaskName
	}
	term = strings.ToLower(term)
	term = strings.ReplaceAll(term, ".gcode", "")
	term = strings.ReplaceAll(term, ".3mf", "")
	return term
}

// AliasCandidates lists the linkage keys to try when matching a
// lifecycle filename against previously linked prints.
func AliasCandidates(filename string) []string {
	switch {
	case strings.HasSuffix(filename, ".3mf"):
		return []string{filename}
	case strings.HasSuffix(filename, ".gcode"):
		base := strings.TrimSuffix(filename, ".gcode")
		return []string{base + ".3mf", filename}
	default:
		return []string{filename + ".3mf", filename}
	}
}

func lastSegment(name string) string {
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := names[:0]
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
